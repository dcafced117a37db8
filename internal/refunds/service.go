package refunds

import (
	"context"

	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/notifications"
	"stagepass/internal/orders"
	"stagepass/internal/payments"
	"stagepass/internal/shared/apperr"
	"stagepass/internal/tickets"
	"stagepass/pkg/logger"
	"stagepass/pkg/metrics"

	"github.com/google/uuid"
)

// amounts are compared at cent precision
const centTolerance = 0.005

// RefundInput is one admin-initiated refund. Full refunds whatever remains
// and closes the order; a partial refund names an amount and only moves
// money, even when that amount clears the remaining balance.
type RefundInput struct {
	OrderID uuid.UUID
	Full    bool
	Amount  float64
	Reason  string
}

// RefundResult reports what the refund did
type RefundResult struct {
	OrderID        string  `json:"order_id"`
	Amount         float64 `json:"amount"`
	Full           bool    `json:"full"`
	RemainingAfter float64 `json:"remaining_after"`
	OrderStatus    string  `json:"order_status"`
}

// Service interface defines the contract for refund operations
type Service interface {
	Refund(ctx context.Context, input *RefundInput) (*RefundResult, error)
}

type service struct {
	orders    orders.Service
	payments  payments.Service
	tickets   tickets.Service
	inventory inventory.Service
	events    events.Service
	producer  notifications.OrderEventProducer
	logger    *logger.Logger
}

func NewService(
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	ticketsSvc tickets.Service,
	inventorySvc inventory.Service,
	eventsSvc events.Service,
	producer notifications.OrderEventProducer,
) Service {
	return &service{
		orders:    ordersSvc,
		payments:  paymentsSvc,
		tickets:   ticketsSvc,
		inventory: inventorySvc,
		events:    eventsSvc,
		producer:  producer,
		logger:    logger.GetDefault(),
	}
}

// Refund processes a full or partial refund against a paid order.
//
// Partial refunds leave the order PAID and its tickets valid; only the money
// moves, even for an amount that clears the remaining balance. Only an
// explicit full refund voids the tickets, releases the seats back to sale,
// and closes the order as REFUNDED.
func (s *service) Refund(ctx context.Context, input *RefundInput) (*RefundResult, error) {
	if input.Reason == "" {
		return nil, apperr.Validation("refund reason is required")
	}
	if input.Full && input.Amount != 0 {
		return nil, apperr.Validation("a full refund must not name an amount")
	}
	if !input.Full && input.Amount <= 0 {
		return nil, apperr.Validation("a partial refund needs a positive amount")
	}

	order, err := s.orders.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orders.StatusPaid {
		return nil, apperr.InvalidState("order %s is %s, only paid orders can be refunded", order.ID, order.Status)
	}

	refunded, err := s.payments.RefundedTotal(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	remaining := order.TotalAmount - refunded

	amount := input.Amount
	if input.Full {
		amount = remaining
	}
	if amount <= 0 {
		return nil, apperr.Validation("nothing left to refund on order %s", order.ID)
	}
	if amount > remaining+centTolerance {
		return nil, apperr.AmountExceedsOrder(
			"refund of %.2f exceeds remaining balance %.2f on order %s", amount, remaining, order.ID)
	}

	if _, err := s.payments.RecordRefund(ctx, order.ID, amount, order.Currency); err != nil {
		return nil, err
	}

	orderStatus := order.Status
	if input.Full {
		if _, err := s.tickets.VoidTickets(ctx, order.ID); err != nil {
			return nil, err
		}
		if err := s.inventory.ReleaseSold(ctx, order.ID, nil); err != nil {
			return nil, err
		}
		if err := s.orders.MarkRefunded(ctx, order.ID); err != nil {
			return nil, err
		}
		orderStatus = orders.StatusRefunded
		metrics.Refunds.WithLabelValues("full").Inc()
	} else {
		metrics.Refunds.WithLabelValues("partial").Inc()
	}

	s.logger.LogRefund(ctx, order.ID.String(), amount, input.Full, input.Reason)
	s.publishRefunded(ctx, order, amount)

	return &RefundResult{
		OrderID:        order.ID.String(),
		Amount:         amount,
		Full:           input.Full,
		RemainingAfter: remaining - amount,
		OrderStatus:    orderStatus,
	}, nil
}

func (s *service) publishRefunded(ctx context.Context, order *orders.Order, amount float64) {
	msg := notifications.NewOrderEvent(notifications.OrderEventRefunded)
	msg.OrderID = order.ID
	msg.OrderReference = order.Reference
	msg.EventID = order.EventID
	msg.TotalAmount = amount
	msg.Currency = order.Currency
	if order.User != nil {
		msg.BuyerEmail = order.User.Email
		msg.BuyerName = order.User.Name
	}
	if ev, err := s.events.GetEvent(ctx, order.EventID); err == nil {
		msg.EventName = ev.Name
	}

	if err := s.producer.Publish(ctx, msg); err != nil {
		s.logger.WithError(err).Error("failed to publish refund event",
			"order_id", order.ID.String())
	}
}
