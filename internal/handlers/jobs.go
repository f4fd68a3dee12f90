package handlers

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/internal/models"
	"github.com/kubev2v/prio-scheduler/internal/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob submits a job
// (POST /jobs)
func (h *Handler) CreateJob(c *gin.Context) {
	var body v1.JobRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: "invalid request body: " + err.Error()})
		return
	}

	req, err := body.ToModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		return
	}

	job, err := h.jobSrv.Submit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "failed to submit job")
		return
	}

	c.JSON(http.StatusAccepted, v1.NewJobFromModel(*job))
}

// GetJobs returns the list of jobs with filtering and pagination
// (GET /jobs)
func (h *Handler) GetJobs(c *gin.Context, params v1.GetJobsParams) {
	page := 1
	if params.Page != nil && *params.Page > 0 {
		page = *params.Page
	}
	pageSize := defaultPageSize
	if params.PageSize != nil && *params.PageSize > 0 {
		pageSize = *params.PageSize
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}

	if page-1 > math.MaxInt/pageSize {
		c.JSON(http.StatusBadRequest, v1.Error{Error: fmt.Sprintf("page %d out of range", page)})
		return
	}

	states, err := v1.ParseJobStates(params.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		return
	}
	priorities, err := v1.ParsePriorities(params.Priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		return
	}

	filter := models.JobFilter{
		States:     states,
		Priorities: priorities,
		Kinds:      params.Kind,
		Limit:      uint64(pageSize),
		Offset:     uint64((page - 1) * pageSize),
	}

	result, err := h.jobSrv.List(c.Request.Context(), filter, v1.ParseSort(params.Sort)...)
	if err != nil {
		writeError(c, err, "failed to list jobs")
		return
	}

	apiJobs := make([]v1.Job, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		apiJobs = append(apiJobs, v1.NewJobFromModel(job))
	}

	c.JSON(http.StatusOK, v1.JobListResponse{
		Jobs:      apiJobs,
		Page:      page,
		PageCount: util.PageCount(result.Total, pageSize),
		Total:     result.Total,
	})
}

// GetJob returns a single job
// (GET /jobs/{id})
func (h *Handler) GetJob(c *gin.Context, id string) {
	job, err := h.jobSrv.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get job")
		return
	}
	c.JSON(http.StatusOK, v1.NewJobFromModel(*job))
}

// CancelJob cancels a delayed, queued or running job
// (DELETE /jobs/{id})
func (h *Handler) CancelJob(c *gin.Context, id string) {
	job, err := h.jobSrv.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to cancel job")
		return
	}
	c.JSON(http.StatusOK, v1.NewJobFromModel(*job))
}

// GetJobEvents returns the dispatch history of a job
// (GET /jobs/{id}/events)
func (h *Handler) GetJobEvents(c *gin.Context, id string) {
	events, err := h.jobSrv.Events(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get job events")
		return
	}

	apiEvents := make([]v1.JobEvent, 0, len(events))
	for _, e := range events {
		apiEvents = append(apiEvents, v1.NewJobEventFromModel(e))
	}
	c.JSON(http.StatusOK, apiEvents)
}

// GetSchedulerStatus returns the scheduler state
// (GET /scheduler)
func (h *Handler) GetSchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewSchedulerStatus(h.jobSrv.Stats(), h.jobSrv.Kinds()))
}
