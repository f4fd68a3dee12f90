package v1

import (
	"fmt"
	"strings"
	"time"

	"github.com/kubev2v/prio-scheduler/internal/models"
	"github.com/kubev2v/prio-scheduler/internal/store"
	"github.com/kubev2v/prio-scheduler/internal/util"
	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

// NewJobFromModel converts a models.Job to an API Job.
func NewJobFromModel(job models.Job) Job {
	apiJob := Job{
		Id:          job.ID,
		Kind:        job.Kind,
		Priority:    job.Priority,
		State:       JobState(job.State),
		Input:       job.Input,
		Attempts:    job.Attempts,
		Preemptions: job.Preemptions,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}

	if job.State == models.JobStateCompleted {
		apiJob.Result = util.Ptr(job.Result)
	}
	if job.Error != "" {
		apiJob.Error = util.Ptr(job.Error)
	}
	if job.Delay > 0 {
		apiJob.Delay = job.Delay.String()
	}

	return apiJob
}

func NewJobEventFromModel(e models.JobEvent) JobEvent {
	return JobEvent{Kind: e.Kind, Attempt: e.Attempt, Time: e.Time}
}

// ToModel converts the request. Priority and kind are validated by the service.
func (r JobRequest) ToModel() (models.JobRequest, error) {
	req := models.JobRequest{
		Kind:     r.Kind,
		Priority: strings.ToLower(strings.TrimSpace(r.Priority)),
		Input:    r.Input,
	}
	if r.Delay != "" {
		d, err := time.ParseDuration(r.Delay)
		if err != nil {
			return models.JobRequest{}, fmt.Errorf("invalid delay %q: %w", r.Delay, err)
		}
		req.Delay = d
	}
	return req, nil
}

func NewSchedulerStatus(stats scheduler.Stats, kinds []string) SchedulerStatus {
	status := SchedulerStatus{
		Running:      stats.Running,
		Pending:      make(map[string]int, len(stats.Pending)),
		TotalPending: stats.TotalPending(),
		Delayed:      stats.Delayed,
		Closed:       stats.Closed,
		Kinds:        kinds,
	}
	for p, n := range stats.Pending {
		status.Pending[p.String()] = n
	}
	if stats.Running {
		status.CurrentPriority = util.Ptr(stats.CurrentPriority.String())
		if stats.CurrentLabel != "" {
			status.CurrentJob = util.Ptr(stats.CurrentLabel)
		}
	}
	return status
}

// ParseJobStates converts API state filters to model states.
func ParseJobStates(states []string) ([]models.JobState, error) {
	var result []models.JobState
	for _, s := range splitValues(states) {
		st, err := models.ParseJobState(s)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, nil
}

// ParsePriorities normalizes API priority filters.
func ParsePriorities(priorities []string) ([]string, error) {
	var result []string
	for _, s := range splitValues(priorities) {
		p, err := scheduler.ParsePriority(s)
		if err != nil {
			return nil, err
		}
		result = append(result, p.String())
	}
	return result, nil
}

// ParseSort converts "field" or "-field" values to sort params. A leading
// minus sorts descending.
func ParseSort(values []string) []store.SortParam {
	var result []store.SortParam
	for _, v := range splitValues(values) {
		if field, ok := strings.CutPrefix(v, "-"); ok {
			result = append(result, store.SortParam{Field: field, Desc: true})
			continue
		}
		result = append(result, store.SortParam{Field: v})
	}
	return result
}

// splitValues accepts both repeated parameters and comma separated lists.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
