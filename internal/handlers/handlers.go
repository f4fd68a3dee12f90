package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/prio-scheduler/api/v1"
	"github.com/kubev2v/prio-scheduler/internal/services"
	srvErrors "github.com/kubev2v/prio-scheduler/pkg/errors"
)

type Handler struct {
	jobSrv *services.JobService
}

func New(jobSrv *services.JobService) *Handler {
	return &Handler{
		jobSrv: jobSrv,
	}
}

// writeError maps service errors to HTTP status codes.
func writeError(c *gin.Context, err error, msg string) {
	switch {
	case srvErrors.IsResourceNotFoundError(err):
		c.JSON(http.StatusNotFound, v1.Error{Error: err.Error()})
	case srvErrors.IsInvalidRequestError(err):
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
	case srvErrors.IsJobFinishedError(err):
		c.JSON(http.StatusConflict, v1.Error{Error: err.Error()})
	case srvErrors.IsClosedError(err):
		c.JSON(http.StatusServiceUnavailable, v1.Error{Error: err.Error()})
	default:
		zap.S().Named("job_handler").Errorw(msg, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error{Error: msg})
	}
}
