package checkout

import (
	"context"

	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/notifications"
	"stagepass/internal/orders"
	"stagepass/internal/payments"
	"stagepass/internal/shared/apperr"
	"stagepass/internal/shared/config"
	"stagepass/internal/tickets"
	"stagepass/pkg/logger"
	"stagepass/pkg/metrics"

	"github.com/google/uuid"
)

// Service orchestrates the seat reservation -> order -> payment -> ticket
// pipeline. Forward steps record compensations; a failure unwinds everything
// done so far and the buyer starts over from the seat map.
type Service interface {
	BeginCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	InitiatePayment(ctx context.Context, orderID uuid.UUID) (*payments.InitiateResponse, error)
	ApplySettlement(ctx context.Context, event *payments.SettlementEvent) error
	CancelAbandoned(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	events    events.Service
	inventory inventory.Service
	orders    orders.Service
	payments  payments.Service
	tickets   tickets.Service
	producer  notifications.OrderEventProducer
	currency  string
	logger    *logger.Logger
}

func NewService(
	eventsSvc events.Service,
	inventorySvc inventory.Service,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	ticketsSvc tickets.Service,
	producer notifications.OrderEventProducer,
	paymentCfg *config.PaymentConfig,
) Service {
	return &service{
		events:    eventsSvc,
		inventory: inventorySvc,
		orders:    ordersSvc,
		payments:  paymentsSvc,
		tickets:   ticketsSvc,
		producer:  producer,
		currency:  paymentCfg.Currency,
		logger:    logger.GetDefault(),
	}
}

// BeginCheckout reserves the seats and opens a PENDING order against them.
// The seat reservation is the step that can lose a race; everything after it
// unwinds through the compensation stack on failure.
func (s *service) BeginCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		return nil, apperr.Validation("invalid event id")
	}
	if len(req.SeatIDs) == 0 && len(req.GeneralLines) == 0 {
		return nil, apperr.Validation("checkout needs seats or a quantity line")
	}
	seatIDs := make([]uuid.UUID, 0, len(req.SeatIDs))
	for _, raw := range req.SeatIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("invalid seat id: %s", raw)
		}
		seatIDs = append(seatIDs, id)
	}

	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsOnSale() {
		return nil, apperr.InvalidState("event %s is not on sale", event.Name)
	}

	var seats []inventory.Seat
	if len(seatIDs) > 0 {
		seats, err = s.inventory.GetSeatsByIDs(ctx, seatIDs)
		if err != nil {
			return nil, err
		}
		if len(seats) != len(seatIDs) {
			return nil, apperr.NotFound("one or more seats do not exist")
		}
		for _, seat := range seats {
			if seat.Zone == nil || seat.Zone.EventID != eventID {
				return nil, apperr.Validation("seat %s does not belong to this event", seat.ID)
			}
		}
	}

	orderID := uuid.New()
	comp := newCompensations()
	holdingSeats := false
	armRelease := func() {
		if holdingSeats {
			return
		}
		holdingSeats = true
		comp.push("release reserved seats", func(cctx context.Context) error {
			return s.inventory.ReleaseReserved(cctx, orderID)
		})
	}

	var lines []orders.LineInput
	var seatLabels []string

	if len(seatIDs) > 0 {
		if _, err := s.inventory.ReserveSeats(ctx, orderID, seatIDs); err != nil {
			if apperr.IsKind(err, apperr.KindConflict) {
				metrics.SeatConflicts.Inc()
			}
			return nil, err
		}
		armRelease()
		for _, seat := range seats {
			label := seat.Label("")
			lines = append(lines, orders.LineInput{
				SeatID:    seat.ID,
				ZoneID:    seat.ZoneID,
				SeatLabel: label,
				Category:  seat.Zone.Category,
				UnitPrice: seat.Price,
				Quantity:  1,
			})
			seatLabels = append(seatLabels, label)
		}
	}

	for _, gl := range req.GeneralLines {
		zoneID, err := uuid.Parse(gl.ZoneID)
		if err != nil {
			comp.run(ctx, orderID.String(), s.logger)
			return nil, apperr.Validation("invalid zone id: %s", gl.ZoneID)
		}
		zone, _, err := s.inventory.AllocateZone(ctx, orderID, eventID, zoneID, gl.Quantity)
		if err != nil {
			if apperr.IsKind(err, apperr.KindConflict) {
				metrics.SeatConflicts.Inc()
			}
			comp.run(ctx, orderID.String(), s.logger)
			return nil, err
		}
		armRelease()
		lines = append(lines, orders.LineInput{
			ZoneID:    zone.ID,
			SeatLabel: zone.Name,
			Category:  zone.Category,
			UnitPrice: zone.BasePrice,
			Quantity:  gl.Quantity,
		})
		for i := 0; i < gl.Quantity; i++ {
			seatLabels = append(seatLabels, zone.Name)
		}
	}

	order, err := s.orders.CreatePendingOrder(ctx, &orders.CreateOrderInput{
		OrderID: orderID,
		EventID: eventID,
		Buyer: orders.BuyerInput{
			Email: req.Buyer.Email,
			Name:  req.Buyer.Name,
			Phone: req.Buyer.Phone,
		},
		Lines:         lines,
		ExpectedTotal: req.ExpectedTotal,
		Currency:      s.currency,
	})
	if err != nil {
		comp.run(ctx, orderID.String(), s.logger)
		return nil, err
	}
	metrics.OrdersCreated.Inc()

	// The advisory hold did its job; drop it so the map shows RESERVED
	if req.HoldID != "" {
		if err := s.inventory.ReleaseHold(ctx, req.HoldID); err != nil {
			s.logger.Warn("failed to release seat hold after checkout", "hold_id", req.HoldID)
		}
	}

	return &CheckoutResponse{
		OrderID:     order.ID.String(),
		Reference:   order.Reference,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		SeatLabels:  seatLabels,
		CreatedAt:   order.CreatedAt,
	}, nil
}

// InitiatePayment opens a payment intent with the gateway. If the provider
// is down, the whole checkout unwinds: tickets voided, order removed, seats
// released, so the buyer can retry from a clean seat map.
func (s *service) InitiatePayment(ctx context.Context, orderID uuid.UUID) (*payments.InitiateResponse, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.orders.MarkProcessing(ctx, orderID); err != nil {
		return nil, err
	}

	_, resp, err := s.payments.Initiate(ctx, &payments.InitiateInput{
		OrderID:        order.ID,
		OrderReference: order.Reference,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
	})
	if err != nil {
		comp := newCompensations()
		comp.push("release reserved seats", func(cctx context.Context) error {
			return s.inventory.ReleaseReserved(cctx, orderID)
		})
		comp.push("delete order", func(cctx context.Context) error {
			return s.orders.DeleteOrder(cctx, orderID)
		})
		comp.push("void tickets", func(cctx context.Context) error {
			_, verr := s.tickets.VoidTickets(cctx, orderID)
			return verr
		})
		comp.run(ctx, orderID.String(), s.logger)
		return nil, err
	}

	return resp, nil
}

// ApplySettlement drives the order to its post-payment state. Replayed
// deliveries run the same pipeline: every step is idempotent, so a redelivery
// after a crash mid-settlement finishes the remaining work instead of leaving
// the order stuck behind a settled payment.
func (s *service) ApplySettlement(ctx context.Context, event *payments.SettlementEvent) error {
	if event.Replayed {
		metrics.SettlementReplays.Inc()
	}

	switch event.Outcome {
	case payments.OutcomeCompleted:
		return s.settleCompleted(ctx, event)
	case payments.OutcomeFailed:
		return s.settleNotPaid(ctx, event.OrderID, "PAYMENT_FAILED")
	case payments.OutcomeCancelled:
		return s.settleNotPaid(ctx, event.OrderID, "PAYMENT_CANCELLED")
	default:
		return apperr.Validation("unknown settlement outcome %q", event.Outcome)
	}
}

func (s *service) settleCompleted(ctx context.Context, event *payments.SettlementEvent) error {
	order, err := s.orders.GetOrder(ctx, event.OrderID)
	if err != nil {
		return err
	}
	alreadyPaid := order.IsPaid()

	if err := s.orders.MarkPaid(ctx, event.OrderID, event.PaymentID); err != nil {
		// A completed payment for an order the reclaimer already cancelled
		// means money moved with nothing to sell. Flag it for manual review.
		if apperr.IsKind(err, apperr.KindInvalidState) || apperr.IsKind(err, apperr.KindConflict) {
			s.logger.Error("completed payment for unsellable order, needs manual review",
				"order_id", event.OrderID.String(),
				"payment_id", event.PaymentID.String(),
				"error", err.Error())
			return nil
		}
		return err
	}

	if err := s.inventory.ConfirmSold(ctx, event.OrderID); err != nil {
		return err
	}

	ev, err := s.events.GetEvent(ctx, order.EventID)
	if err != nil {
		return err
	}

	issueLines := make([]tickets.IssueLine, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		var seatID uuid.UUID
		if line.SeatID != nil {
			seatID = *line.SeatID
		}
		issueLines = append(issueLines, tickets.IssueLine{
			SeatID:    seatID,
			SeatLabel: line.SeatLabel,
			Category:  line.Category,
			Price:     line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	issued, err := s.tickets.Issue(ctx, &tickets.IssueRequest{
		OrderID:        order.ID,
		OrderReference: order.Reference,
		EventID:        order.EventID,
		EventName:      ev.Name,
		TicketPrefix:   ev.TicketPrefix,
		Lines:          issueLines,
	})
	if err != nil {
		return err
	}
	if alreadyPaid {
		// Redelivery finished converging the pipeline; no second notification
		return nil
	}
	metrics.TicketsIssued.Add(float64(len(issued)))
	metrics.Settlements.WithLabelValues(payments.OutcomeCompleted).Inc()

	s.publishOrderEvent(ctx, notifications.OrderEventPaid, order, ev.Name, "")
	return nil
}

// settleNotPaid claims the cancel transition before touching inventory. The
// seats of an order that was already cancelled may belong to another buyer by
// now, so they are never released twice.
func (s *service) settleNotPaid(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	switch order.Status {
	case orders.StatusPaid, orders.StatusRefunded:
		// A stale failure callback for a settled order changes nothing
		s.logger.Warn("ignoring late payment failure for settled order",
			"order_id", orderID.String(), "reason", reason)
		return nil
	case orders.StatusCancelled:
		return nil
	}

	if err := s.orders.MarkCancelled(ctx, orderID, reason); err != nil {
		if apperr.IsKind(err, apperr.KindInvalidState) {
			// Lost the race to a concurrent settlement of the same order
			s.logger.Warn("ignoring late payment failure for settled order",
				"order_id", orderID.String(), "reason", reason)
			return nil
		}
		return err
	}
	if err := s.inventory.ReleaseReserved(ctx, orderID); err != nil {
		return err
	}
	metrics.Settlements.WithLabelValues(reason).Inc()

	eventName := ""
	if ev, err := s.events.GetEvent(ctx, order.EventID); err == nil {
		eventName = ev.Name
	}
	s.publishOrderEvent(ctx, notifications.OrderEventCancelled, order, eventName, reason)
	return nil
}

// CancelAbandoned reclaims an order the buyer walked away from
func (s *service) CancelAbandoned(ctx context.Context, orderID uuid.UUID) error {
	if err := s.settleNotPaid(ctx, orderID, "ABANDONED"); err != nil {
		return err
	}
	metrics.OrdersReclaimed.Inc()
	return nil
}

// publishOrderEvent is best effort: a broker outage must not fail a settled
// payment.
func (s *service) publishOrderEvent(ctx context.Context, eventType notifications.OrderEventType, order *orders.Order, eventName, reason string) {
	msg := notifications.NewOrderEvent(eventType)
	msg.OrderID = order.ID
	msg.OrderReference = order.Reference
	msg.EventID = order.EventID
	msg.EventName = eventName
	msg.TotalAmount = order.TotalAmount
	msg.Currency = order.Currency
	msg.Reason = reason
	if order.User != nil {
		msg.BuyerEmail = order.User.Email
		msg.BuyerName = order.User.Name
	}
	for _, line := range order.LineItems {
		msg.SeatLabels = append(msg.SeatLabels, line.SeatLabel)
	}

	if err := s.producer.Publish(ctx, msg); err != nil {
		s.logger.WithError(err).Error("failed to publish order event",
			"type", string(eventType),
			"order_id", order.ID.String())
	}
}
