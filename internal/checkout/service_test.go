package checkout

import (
	"context"
	"testing"

	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/notifications"
	"stagepass/internal/orders"
	"stagepass/internal/payments"
	"stagepass/internal/shared/apperr"
	"stagepass/internal/shared/config"
	"stagepass/internal/tickets"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fakes embed the service interfaces and implement only what checkout
// calls; anything unexpected panics and fails the test loudly.

type fakeEvents struct {
	events.Service
	event *events.Event
}

func (f *fakeEvents) GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	if f.event == nil || f.event.ID != id {
		return nil, apperr.NotFound("event %s not found", id)
	}
	return f.event, nil
}

type fakeInventory struct {
	inventory.Service
	seats         map[uuid.UUID]*inventory.Seat
	zones         map[uuid.UUID]*inventory.Zone
	reserveErr    error
	allocateErr   error
	reserved      []uuid.UUID
	allocated     map[uuid.UUID]int
	released      []uuid.UUID
	confirmed     []uuid.UUID
	releasedHolds []string
}

func (f *fakeInventory) GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]inventory.Seat, error) {
	var seats []inventory.Seat
	for _, id := range seatIDs {
		if seat, ok := f.seats[id]; ok {
			seats = append(seats, *seat)
		}
	}
	return seats, nil
}

func (f *fakeInventory) ReserveSeats(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) ([]inventory.Seat, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.reserved = append(f.reserved, seatIDs...)
	var seats []inventory.Seat
	for _, id := range seatIDs {
		seats = append(seats, *f.seats[id])
	}
	return seats, nil
}

func (f *fakeInventory) AllocateZone(ctx context.Context, orderID, eventID, zoneID uuid.UUID, quantity int) (*inventory.Zone, []inventory.Seat, error) {
	if f.allocateErr != nil {
		return nil, nil, f.allocateErr
	}
	zone, ok := f.zones[zoneID]
	if !ok {
		return nil, nil, apperr.NotFound("zone %s does not exist", zoneID)
	}
	f.allocated[zoneID] += quantity
	seats := make([]inventory.Seat, quantity)
	for i := range seats {
		seats[i] = inventory.Seat{ID: uuid.New(), ZoneID: zoneID, Status: inventory.SeatReserved}
	}
	return zone, seats, nil
}

func (f *fakeInventory) ReleaseReserved(ctx context.Context, orderID uuid.UUID) error {
	f.released = append(f.released, orderID)
	return nil
}

func (f *fakeInventory) ConfirmSold(ctx context.Context, orderID uuid.UUID) error {
	f.confirmed = append(f.confirmed, orderID)
	return nil
}

func (f *fakeInventory) ReleaseHold(ctx context.Context, holdID string) error {
	f.releasedHolds = append(f.releasedHolds, holdID)
	return nil
}

type fakeOrders struct {
	orders.Service
	byID      map[uuid.UUID]*orders.Order
	createErr error
	deleted   []uuid.UUID
	paid      []uuid.UUID
	cancelled map[uuid.UUID]string
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		byID:      make(map[uuid.UUID]*orders.Order),
		cancelled: make(map[uuid.UUID]string),
	}
}

func (f *fakeOrders) CreatePendingOrder(ctx context.Context, input *orders.CreateOrderInput) (*orders.Order, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	var total float64
	lines := make([]orders.OrderLineItem, 0, len(input.Lines))
	for _, l := range input.Lines {
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		var seatRef *uuid.UUID
		if l.SeatID != uuid.Nil {
			seatID := l.SeatID
			seatRef = &seatID
		}
		lines = append(lines, orders.OrderLineItem{
			SeatID:    seatRef,
			ZoneID:    l.ZoneID,
			SeatLabel: l.SeatLabel,
			Category:  l.Category,
			UnitPrice: l.UnitPrice,
			Quantity:  qty,
		})
		total += l.UnitPrice * float64(qty)
	}
	order := &orders.Order{
		ID:          input.OrderID,
		Reference:   "ORD-20260831-K7XM2Q",
		EventID:     input.EventID,
		Status:      orders.StatusPending,
		TotalAmount: total,
		Currency:    input.Currency,
		LineItems:   lines,
	}
	f.byID[order.ID] = order
	return order, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	order, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return order, nil
}

func (f *fakeOrders) MarkProcessing(ctx context.Context, orderID uuid.UUID) error {
	f.byID[orderID].Status = orders.StatusProcessing
	return nil
}

func (f *fakeOrders) MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error {
	order, ok := f.byID[orderID]
	if !ok {
		return apperr.NotFound("order %s not found", orderID)
	}
	if order.Status == orders.StatusCancelled {
		return apperr.InvalidState("order %s is cancelled", orderID)
	}
	order.Status = orders.StatusPaid
	f.paid = append(f.paid, orderID)
	return nil
}

func (f *fakeOrders) MarkCancelled(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, ok := f.byID[orderID]
	if !ok {
		return apperr.NotFound("order %s not found", orderID)
	}
	if order.Status == orders.StatusPaid {
		return apperr.InvalidState("order %s is paid", orderID)
	}
	order.Status = orders.StatusCancelled
	f.cancelled[orderID] = reason
	return nil
}

func (f *fakeOrders) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	f.deleted = append(f.deleted, orderID)
	delete(f.byID, orderID)
	return nil
}

type fakePayments struct {
	payments.Service
	initiateErr error
}

func (f *fakePayments) Initiate(ctx context.Context, input *payments.InitiateInput) (*payments.Payment, *payments.InitiateResponse, error) {
	if f.initiateErr != nil {
		return nil, nil, f.initiateErr
	}
	return &payments.Payment{ID: uuid.New(), OrderID: input.OrderID},
		&payments.InitiateResponse{
			PaymentID:   uuid.New().String(),
			RedirectURL: "https://pay.cardlink.test/intent",
		}, nil
}

type fakeTickets struct {
	tickets.Service
	issued []uuid.UUID
	voided []uuid.UUID
}

// Issue mirrors the real service's idempotency: one batch per order
func (f *fakeTickets) Issue(ctx context.Context, req *tickets.IssueRequest) ([]tickets.Ticket, error) {
	for _, id := range f.issued {
		if id == req.OrderID {
			return make([]tickets.Ticket, len(req.Lines)), nil
		}
	}
	f.issued = append(f.issued, req.OrderID)
	batch := make([]tickets.Ticket, len(req.Lines))
	return batch, nil
}

func (f *fakeTickets) VoidTickets(ctx context.Context, orderID uuid.UUID) (int64, error) {
	f.voided = append(f.voided, orderID)
	return 0, nil
}

type fixture struct {
	events    *fakeEvents
	inventory *fakeInventory
	orders    *fakeOrders
	payments  *fakePayments
	tickets   *fakeTickets
	svc       Service
	eventID   uuid.UUID
	seatIDs   []uuid.UUID
}

func newFixture() *fixture {
	eventID := uuid.New()
	f := &fixture{
		events: &fakeEvents{event: &events.Event{
			ID:           eventID,
			Name:         "Midnight Static Tour",
			TicketPrefix: "MST",
			Status:       "ON_SALE",
		}},
		inventory: &fakeInventory{
			seats:     make(map[uuid.UUID]*inventory.Seat),
			zones:     make(map[uuid.UUID]*inventory.Zone),
			allocated: make(map[uuid.UUID]int),
		},
		orders:    newFakeOrders(),
		payments:  &fakePayments{},
		tickets:   &fakeTickets{},
		eventID:   eventID,
	}

	zone := &inventory.Zone{ID: uuid.New(), EventID: eventID, Name: "Floor", Category: "SEATED"}
	for i := 4; i <= 5; i++ {
		seat := &inventory.Seat{
			ID:     uuid.New(),
			ZoneID: zone.ID,
			Zone:   zone,
			Row:    "B",
			Number: i,
			Price:  120.0,
			Status: inventory.SeatAvailable,
		}
		f.inventory.seats[seat.ID] = seat
		f.seatIDs = append(f.seatIDs, seat.ID)
	}

	f.svc = NewService(f.events, f.inventory, f.orders, f.payments, f.tickets,
		notifications.NewNoopProducer(), &config.PaymentConfig{Currency: "EUR"})
	return f
}

func (f *fixture) checkoutRequest() *CheckoutRequest {
	seatIDs := make([]string, 0, len(f.seatIDs))
	for _, id := range f.seatIDs {
		seatIDs = append(seatIDs, id.String())
	}
	return &CheckoutRequest{
		EventID:       f.eventID.String(),
		SeatIDs:       seatIDs,
		ExpectedTotal: 240.0,
		Buyer:         BuyerDetails{Email: "buyer@example.com", Name: "Jo Buyer"},
	}
}

func TestBeginCheckout(t *testing.T) {
	f := newFixture()

	resp, err := f.svc.BeginCheckout(context.Background(), f.checkoutRequest())
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, resp.Status)
	assert.Equal(t, 240.0, resp.TotalAmount)
	assert.ElementsMatch(t, []string{"Floor-B4", "Floor-B5"}, resp.SeatLabels)
	assert.Len(t, f.inventory.reserved, 2)
	assert.Empty(t, f.inventory.released)
}

func TestBeginCheckoutGeneralAdmission(t *testing.T) {
	f := newFixture()
	zone := &inventory.Zone{
		ID:        uuid.New(),
		EventID:   f.eventID,
		Name:      "Standing",
		Category:  "GENERAL",
		BasePrice: 45.0,
	}
	f.inventory.zones[zone.ID] = zone

	resp, err := f.svc.BeginCheckout(context.Background(), &CheckoutRequest{
		EventID:       f.eventID.String(),
		GeneralLines:  []GeneralLine{{ZoneID: zone.ID.String(), Quantity: 2}},
		ExpectedTotal: 90.0,
		Buyer:         BuyerDetails{Email: "buyer@example.com", Name: "Jo Buyer"},
	})
	require.NoError(t, err)

	assert.Equal(t, 90.0, resp.TotalAmount)
	assert.Equal(t, []string{"Standing", "Standing"}, resp.SeatLabels)
	assert.Equal(t, 2, f.inventory.allocated[zone.ID])
	assert.Empty(t, f.inventory.reserved)
}

func TestBeginCheckoutGeneralAdmissionSoldOut(t *testing.T) {
	f := newFixture()
	zone := &inventory.Zone{ID: uuid.New(), EventID: f.eventID, Name: "Standing", Category: "GENERAL", BasePrice: 45.0}
	f.inventory.zones[zone.ID] = zone
	f.inventory.allocateErr = apperr.Conflict("only 1 spots left in Standing")

	_, err := f.svc.BeginCheckout(context.Background(), &CheckoutRequest{
		EventID:       f.eventID.String(),
		GeneralLines:  []GeneralLine{{ZoneID: zone.ID.String(), Quantity: 2}},
		ExpectedTotal: 90.0,
		Buyer:         BuyerDetails{Email: "buyer@example.com", Name: "Jo Buyer"},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestBeginCheckoutNoLines(t *testing.T) {
	f := newFixture()
	req := f.checkoutRequest()
	req.SeatIDs = nil

	_, err := f.svc.BeginCheckout(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestBeginCheckoutReleasesHold(t *testing.T) {
	f := newFixture()
	req := f.checkoutRequest()
	req.HoldID = "hold-123"

	_, err := f.svc.BeginCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"hold-123"}, f.inventory.releasedHolds)
}

func TestBeginCheckoutEventNotOnSale(t *testing.T) {
	f := newFixture()
	f.events.event.Status = "DRAFT"

	_, err := f.svc.BeginCheckout(context.Background(), f.checkoutRequest())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
	assert.Empty(t, f.inventory.reserved)
}

func TestBeginCheckoutSeatConflict(t *testing.T) {
	f := newFixture()
	f.inventory.reserveErr = apperr.Conflict("seat B4 is no longer available")

	_, err := f.svc.BeginCheckout(context.Background(), f.checkoutRequest())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestBeginCheckoutWrongEventSeat(t *testing.T) {
	f := newFixture()
	for _, seat := range f.inventory.seats {
		seat.Zone = &inventory.Zone{ID: seat.ZoneID, EventID: uuid.New()}
	}

	_, err := f.svc.BeginCheckout(context.Background(), f.checkoutRequest())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestBeginCheckoutCompensatesOrderFailure(t *testing.T) {
	f := newFixture()
	f.orders.createErr = apperr.PriceMismatch("prices moved")

	_, err := f.svc.BeginCheckout(context.Background(), f.checkoutRequest())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPriceMismatch))

	// The seat reservation must be unwound
	require.Len(t, f.inventory.released, 1)
}

func TestInitiatePaymentCompensatesProviderFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	f.payments.initiateErr = apperr.Provider(nil, "gateway down")
	_, err = f.svc.InitiatePayment(ctx, orderID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindProvider))

	// Full unwind: tickets voided, order deleted, seats released
	assert.Equal(t, []uuid.UUID{orderID}, f.tickets.voided)
	assert.Equal(t, []uuid.UUID{orderID}, f.orders.deleted)
	assert.Equal(t, []uuid.UUID{orderID}, f.inventory.released)
}

func TestApplySettlementCompleted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	_, err = f.svc.InitiatePayment(ctx, orderID)
	require.NoError(t, err)

	err = f.svc.ApplySettlement(ctx, &payments.SettlementEvent{
		OrderID:   orderID,
		PaymentID: uuid.New(),
		Outcome:   payments.OutcomeCompleted,
	})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPaid, f.orders.byID[orderID].Status)
	assert.Equal(t, []uuid.UUID{orderID}, f.inventory.confirmed)
	assert.Equal(t, []uuid.UUID{orderID}, f.tickets.issued)
}

func TestApplySettlementFailed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	err = f.svc.ApplySettlement(ctx, &payments.SettlementEvent{
		OrderID:   orderID,
		PaymentID: uuid.New(),
		Outcome:   payments.OutcomeFailed,
	})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusCancelled, f.orders.byID[orderID].Status)
	assert.Equal(t, "PAYMENT_FAILED", f.orders.cancelled[orderID])
	assert.Equal(t, []uuid.UUID{orderID}, f.inventory.released)
	assert.Empty(t, f.tickets.issued)
}

func TestApplySettlementReplayedCompletionConverges(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	// The payment settled in an earlier delivery but the order never caught
	// up. The redelivered event must still drive the pipeline to PAID.
	err = f.svc.ApplySettlement(ctx, &payments.SettlementEvent{
		OrderID:   orderID,
		PaymentID: uuid.New(),
		Outcome:   payments.OutcomeCompleted,
		Replayed:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPaid, f.orders.byID[orderID].Status)
	assert.Equal(t, []uuid.UUID{orderID}, f.inventory.confirmed)
	assert.Equal(t, []uuid.UUID{orderID}, f.tickets.issued)
}

func TestApplySettlementCompletedTwiceIssuesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	event := &payments.SettlementEvent{
		OrderID:   orderID,
		PaymentID: uuid.New(),
		Outcome:   payments.OutcomeCompleted,
	}
	require.NoError(t, f.svc.ApplySettlement(ctx, event))

	replay := *event
	replay.Replayed = true
	require.NoError(t, f.svc.ApplySettlement(ctx, &replay))

	assert.Equal(t, orders.StatusPaid, f.orders.byID[orderID].Status)
	assert.Equal(t, []uuid.UUID{orderID}, f.tickets.issued)
}

func TestApplySettlementPaidAfterCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	// Reclaimer cancels before the completed callback lands
	require.NoError(t, f.svc.CancelAbandoned(ctx, orderID))

	err = f.svc.ApplySettlement(ctx, &payments.SettlementEvent{
		OrderID:   orderID,
		PaymentID: uuid.New(),
		Outcome:   payments.OutcomeCompleted,
	})
	// Flagged for manual review, never an error back to the gateway
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, f.orders.byID[orderID].Status)
	assert.Empty(t, f.tickets.issued)
}

func TestCancelAbandoned(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	resp, err := f.svc.BeginCheckout(ctx, f.checkoutRequest())
	require.NoError(t, err)
	orderID := uuid.MustParse(resp.OrderID)

	require.NoError(t, f.svc.CancelAbandoned(ctx, orderID))
	assert.Equal(t, "ABANDONED", f.orders.cancelled[orderID])
	assert.Equal(t, []uuid.UUID{orderID}, f.inventory.released)

	// A late failure callback for the already-cancelled order is ignored;
	// the seats may belong to another buyer by now and must not be released
	// a second time
	err = f.svc.ApplySettlement(ctx, &payments.SettlementEvent{
		OrderID: orderID,
		Outcome: payments.OutcomeCancelled,
	})
	require.NoError(t, err)
	require.Len(t, f.inventory.released, 1)
}
