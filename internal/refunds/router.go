package refunds

import (
	"net/http"

	"stagepass/internal/shared/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RefundRequest asks for either a full refund or a named partial amount
type RefundRequest struct {
	Full   bool    `json:"full"`
	Amount float64 `json:"amount" binding:"omitempty,gt=0"`
	Reason string  `json:"reason" binding:"required,min=3,max=255"`
}

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// Refund handles POST /api/v1/admin/refunds/:orderId
func (c *Controller) Refund(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("orderId"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req RefundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	result, err := c.service.Refund(ctx.Request.Context(), &RefundInput{
		OrderID: orderID,
		Full:    req.Full,
		Amount:  req.Amount,
		Reason:  req.Reason,
	})
	if err != nil {
		ctx.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Refund processed successfully",
		"data":    result,
	})
}

// SetupRefundRoutes configures admin refund routes. The group is expected to
// carry admin auth middleware.
func SetupRefundRoutes(rg *gin.RouterGroup, controller *Controller) {
	rg.POST("/refunds/:orderId", controller.Refund)
}
