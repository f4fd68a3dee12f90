package v1

import (
	"github.com/gin-gonic/gin"
)

// ServerInterface lists the /api/v1 operations.
type ServerInterface interface {
	// (POST /jobs)
	CreateJob(c *gin.Context)
	// (GET /jobs)
	GetJobs(c *gin.Context, params GetJobsParams)
	// (GET /jobs/{id})
	GetJob(c *gin.Context, id string)
	// (DELETE /jobs/{id})
	CancelJob(c *gin.Context, id string)
	// (GET /jobs/{id}/events)
	GetJobEvents(c *gin.Context, id string)
	// (GET /scheduler)
	GetSchedulerStatus(c *gin.Context)
}

// RegisterHandlers binds si to router, which is expected to be the /api/v1 group.
func RegisterHandlers(router gin.IRoutes, si ServerInterface) {
	router.POST("/jobs", si.CreateJob)
	router.GET("/jobs", func(c *gin.Context) {
		var params GetJobsParams
		if err := c.ShouldBindQuery(&params); err != nil {
			c.JSON(400, Error{Error: "invalid query parameters: " + err.Error()})
			return
		}
		si.GetJobs(c, params)
	})
	router.GET("/jobs/:id", func(c *gin.Context) {
		si.GetJob(c, c.Param("id"))
	})
	router.DELETE("/jobs/:id", func(c *gin.Context) {
		si.CancelJob(c, c.Param("id"))
	})
	router.GET("/jobs/:id/events", func(c *gin.Context) {
		si.GetJobEvents(c, c.Param("id"))
	})
	router.GET("/scheduler", si.GetSchedulerStatus)
}
