package checkout

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

// BeginCheckout handles POST /api/v1/checkout
func (c *Controller) BeginCheckout(ctx *gin.Context) {
	var req CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	resp, err := c.service.BeginCheckout(ctx.Request.Context(), &req)
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Checkout started successfully",
		"data":    resp,
	})
}

// InitiatePayment handles POST /api/v1/checkout/:orderId/payment
func (c *Controller) InitiatePayment(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("orderId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	resp, err := c.service.InitiatePayment(ctx.Request.Context(), orderID)
	if err != nil {
		status := apperr.HTTPStatus(err)
		msg := err.Error()
		if apperr.IsKind(err, apperr.KindProvider) {
			msg = "Payment provider is temporarily unavailable, please try again"
		}
		ctx.JSON(status, gin.H{"error": msg})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Payment initiated successfully",
		"data":    resp,
	})
}

// SetupCheckoutRoutes configures checkout routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, controller *Controller) {
	checkoutGroup := rg.Group("/checkout")
	{
		checkoutGroup.POST("", controller.BeginCheckout)
		checkoutGroup.POST("/:orderId/payment", controller.InitiatePayment)
	}
}
