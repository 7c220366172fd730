package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the transcode API on the router.
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/videos", h.CreateVideo)
		v1.GET("/videos/:id", h.GetVideo)

		v1.POST("/videos/:id/transcode", h.EnqueueTranscode)
		v1.DELETE("/videos/:id/transcode", h.CancelTranscode)
		v1.GET("/videos/:id/job", h.GetJob)
		v1.GET("/jobs", h.ListJobs)

		v1.GET("/events/ws", h.EventStream)
	}

	router.GET("/media/*key", h.ServeMedia)
	router.GET("/health", h.Health)
}
