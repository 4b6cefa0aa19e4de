package tiers

import (
	"net/http"

	"fanclub/internal/membership"
	"fanclub/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) GetTier(ctx *gin.Context) {
	tier, err := c.service.GetTier(ctx.Request.Context(), ctx.GetString("club_id"), ctx.GetString("user_id"))
	if err != nil {
		response.RespondError(ctx, "Failed to get membership", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Membership retrieved successfully", tier, nil)
}

func (c *Controller) UpdateTier(ctx *gin.Context) {
	var req UpdateTierRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	tier, err := c.service.SetTier(ctx.Request.Context(), ctx.GetString("club_id"), ctx.GetString("user_id"), membership.Tier(req.Tier))
	if err != nil {
		response.RespondError(ctx, "Failed to update membership", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Membership updated successfully", tier, nil)
}

func SetupMembershipRoutes(rg *gin.RouterGroup, controller *Controller) {
	rg.GET("/membership", controller.GetTier)    // GET /api/v1/membership
	rg.PUT("/membership", controller.UpdateTier) // PUT /api/v1/membership
}
