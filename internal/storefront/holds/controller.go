package holds

import (
	"net/http"

	"fanclub/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) GetAvailability(ctx *gin.Context) {
	availability, err := c.service.Availability(ctx.Request.Context(), ctx.Param("eventId"))
	if err != nil {
		response.RespondError(ctx, "Failed to get availability", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}

func (c *Controller) HoldSeats(ctx *gin.Context) {
	var req HoldSeatsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	grant, err := c.service.HoldSeats(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("eventId"), req)
	if err != nil {
		response.RespondError(ctx, "Failed to hold seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats held successfully", grant, nil)
}

func (c *Controller) RefreshHold(ctx *gin.Context) {
	grant, err := c.service.RefreshHold(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("token"))
	if err != nil {
		response.RespondError(ctx, "Failed to refresh hold", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Hold refreshed successfully", grant, nil)
}

func (c *Controller) ReleaseHold(ctx *gin.Context) {
	if err := c.service.ReleaseHold(ctx.Request.Context(), ctx.GetString("user_id"), ctx.Param("token")); err != nil {
		response.RespondError(ctx, "Failed to release hold", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Hold released successfully", nil, nil)
}
