package orders

import (
	"net/http"

	"fanclub/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func caller(ctx *gin.Context) Caller {
	return Caller{UserID: ctx.GetString("user_id"), ClubID: ctx.GetString("club_id")}
}

func (c *Controller) Checkout(ctx *gin.Context) {
	var req CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	order, replayed, err := c.service.Checkout(ctx.Request.Context(), caller(ctx), ctx.GetHeader(HeaderIdempotencyKey), req)
	if err != nil {
		response.RespondError(ctx, "Failed to place order", err)
		return
	}

	if replayed {
		ctx.Header(HeaderReplayed, "true")
		response.RespondJSON(ctx, "success", http.StatusOK, "Order already placed", order, nil)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Order placed successfully", order, nil)
}

func (c *Controller) GetOrder(ctx *gin.Context) {
	order, err := c.service.GetOrder(ctx.Request.Context(), caller(ctx), ctx.Param("orderId"))
	if err != nil {
		response.RespondError(ctx, "Failed to get order", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", order, nil)
}
