package payments

import (
	"context"
	"io"
	"net/http"

	"stagepass/internal/shared/apperr"
	"stagepass/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SettlementHandler applies a reconciled settlement to the order pipeline.
// The checkout orchestrator implements it; the local interface keeps this
// package from importing checkout.
type SettlementHandler interface {
	ApplySettlement(ctx context.Context, event *SettlementEvent) error
}

type Controller struct {
	service    Service
	settlement SettlementHandler
	logger     *logger.Logger
}

func NewController(service Service, settlement SettlementHandler) *Controller {
	return &Controller{
		service:    service,
		settlement: settlement,
		logger:     logger.GetDefault(),
	}
}

// HandleCallback handles POST /api/v1/payments/callback/:provider.
//
// Authentication failures and unknown payment ids answer 200 with a neutral
// body. Answering 401/404 would hand an attacker an oracle for probing
// signatures and payment ids; only a malformed body earns a 400 so the
// provider retries with a fixed payload.
func (c *Controller) HandleCallback(ctx *gin.Context) {
	providerName := ctx.Param("provider")
	signature := ctx.GetHeader("X-Signature")

	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"status": "rejected"})
		return
	}

	event, err := c.service.Reconcile(ctx.Request.Context(), providerName, body, signature)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindInvalidCallback:
			c.logger.LogWebhookRejected(ctx.Request.Context(), providerName, err.Error(), ctx.ClientIP())
			ctx.JSON(http.StatusOK, gin.H{"status": "received"})
		case apperr.KindValidation:
			ctx.JSON(http.StatusBadRequest, gin.H{"status": "rejected"})
		default:
			// Transient persistence failure: non-2xx so the provider redelivers
			ctx.JSON(http.StatusInternalServerError, gin.H{"status": "retry"})
		}
		return
	}

	// Replayed events go through as well: a crash after the payment settled
	// but before the order caught up leaves redelivery as the only way the
	// pipeline ever converges.
	if err := c.settlement.ApplySettlement(ctx.Request.Context(), event); err != nil {
		c.logger.WithError(err).Error("failed to apply settlement",
			"order_id", event.OrderID.String(),
			"payment_id", event.PaymentID.String())
		ctx.JSON(http.StatusInternalServerError, gin.H{"status": "retry"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "received"})
}

// SetupPaymentRoutes configures the provider callback route
func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller) {
	paymentsGroup := rg.Group("/payments")
	{
		paymentsGroup.POST("/callback/:provider", controller.HandleCallback)
	}
}
