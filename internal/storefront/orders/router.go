package orders

import (
	"github.com/gin-gonic/gin"
)

func SetupOrderRoutes(rg *gin.RouterGroup, controller *Controller, limit gin.HandlerFunc) {
	rg.POST("/checkout", limit, controller.Checkout) // POST /api/v1/checkout
	rg.GET("/orders/:orderId", controller.GetOrder)  // GET /api/v1/orders/:orderId
}
