package holds

import (
	"github.com/gin-gonic/gin"
)

// SetupHoldRoutes mounts the hold endpoints on a group that already runs
// fan authentication. limit guards the mutating routes.
func SetupHoldRoutes(rg *gin.RouterGroup, controller *Controller, limit gin.HandlerFunc) {
	events := rg.Group("/events")
	{
		events.GET("/:eventId/availability", controller.GetAvailability) // GET /api/v1/events/:eventId/availability
		events.POST("/:eventId/holds", limit, controller.HoldSeats)       // POST /api/v1/events/:eventId/holds
	}

	holds := rg.Group("/holds")
	holds.Use(limit)
	{
		holds.POST("/:token/refresh", controller.RefreshHold) // POST /api/v1/holds/:token/refresh
		holds.DELETE("/:token", controller.ReleaseHold)       // DELETE /api/v1/holds/:token
	}
}
