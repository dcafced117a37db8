package orders

import (
	"net/http"

	"stagepass/internal/shared/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GetOrderStatus handles GET /api/v1/orders/:id/status. Storefronts poll it
// while a payment settles.
func (c *Controller) GetOrderStatus(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	status, err := c.service.GetOrderStatus(ctx.Request.Context(), orderID)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Order status retrieved successfully",
		"data":    status,
	})
}

// SetupOrderRoutes configures order routes
func SetupOrderRoutes(rg *gin.RouterGroup, controller *Controller) {
	ordersGroup := rg.Group("/orders")
	{
		ordersGroup.GET("/:id/status", controller.GetOrderStatus)
	}
}
