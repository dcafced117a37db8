package refunds

import (
	"context"
	"testing"

	"stagepass/internal/events"
	"stagepass/internal/inventory"
	"stagepass/internal/notifications"
	"stagepass/internal/orders"
	"stagepass/internal/payments"
	"stagepass/internal/shared/apperr"
	"stagepass/internal/tickets"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fakes embed the service interfaces and override only what Refund
// touches; an unexpected call panics and fails the test loudly.

type fakeOrders struct {
	orders.Service
	order        *orders.Order
	refundedCall bool
}

func (f *fakeOrders) GetOrder(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	if f.order == nil || f.order.ID != id {
		return nil, apperr.NotFound("order %s not found", id)
	}
	return f.order, nil
}

func (f *fakeOrders) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	f.refundedCall = true
	f.order.Status = orders.StatusRefunded
	return nil
}

type fakePayments struct {
	payments.Service
	refunded float64
	records  []float64
}

func (f *fakePayments) RefundedTotal(ctx context.Context, orderID uuid.UUID) (float64, error) {
	return f.refunded, nil
}

func (f *fakePayments) RecordRefund(ctx context.Context, orderID uuid.UUID, amount float64, currency string) (*payments.Payment, error) {
	f.records = append(f.records, amount)
	f.refunded += amount
	return &payments.Payment{OrderID: orderID, Amount: -amount, Currency: currency}, nil
}

type fakeTickets struct {
	tickets.Service
	voidedOrders []uuid.UUID
}

func (f *fakeTickets) VoidTickets(ctx context.Context, orderID uuid.UUID) (int64, error) {
	f.voidedOrders = append(f.voidedOrders, orderID)
	return 2, nil
}

type fakeInventory struct {
	inventory.Service
	releasedOrders []uuid.UUID
}

func (f *fakeInventory) ReleaseSold(ctx context.Context, orderID uuid.UUID, seatIDs []uuid.UUID) error {
	f.releasedOrders = append(f.releasedOrders, orderID)
	return nil
}

type fakeEvents struct {
	events.Service
}

func (f *fakeEvents) GetEvent(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	return &events.Event{ID: id, Name: "Midnight Static Tour"}, nil
}

type refundFixture struct {
	orders    *fakeOrders
	payments  *fakePayments
	tickets   *fakeTickets
	inventory *fakeInventory
	svc       Service
	orderID   uuid.UUID
}

func newRefundFixture(orderStatus string, total float64) *refundFixture {
	orderID := uuid.New()
	f := &refundFixture{
		orders: &fakeOrders{order: &orders.Order{
			ID:          orderID,
			Reference:   "ORD-20260831-K7XM2Q",
			EventID:     uuid.New(),
			Status:      orderStatus,
			TotalAmount: total,
			Currency:    "EUR",
		}},
		payments:  &fakePayments{},
		tickets:   &fakeTickets{},
		inventory: &fakeInventory{},
		orderID:   orderID,
	}
	f.svc = NewService(f.orders, f.payments, f.tickets, f.inventory,
		&fakeEvents{}, notifications.NewNoopProducer())
	return f
}

func TestFullRefund(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)

	result, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Full:    true,
		Reason:  "event postponed",
	})
	require.NoError(t, err)

	assert.True(t, result.Full)
	assert.Equal(t, 240.0, result.Amount)
	assert.Zero(t, result.RemainingAfter)
	assert.Equal(t, orders.StatusRefunded, result.OrderStatus)

	// Full refunds void tickets, release seats, close the order
	assert.Equal(t, []uuid.UUID{f.orderID}, f.tickets.voidedOrders)
	assert.Equal(t, []uuid.UUID{f.orderID}, f.inventory.releasedOrders)
	assert.True(t, f.orders.refundedCall)
}

func TestFullRefundCoversRemainder(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)
	f.payments.refunded = 100.0

	result, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Full:    true,
		Reason:  "goodwill",
	})
	require.NoError(t, err)

	assert.True(t, result.Full)
	assert.Equal(t, 140.0, result.Amount)
	assert.Equal(t, orders.StatusRefunded, result.OrderStatus)
}

func TestPartialRefundOfRemainderStaysPartial(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)
	f.payments.refunded = 200.0

	// Naming the exact remaining balance still only moves money; the order
	// stays PAID and the tickets stay valid
	result, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Amount:  40.0,
		Reason:  "price adjustment",
	})
	require.NoError(t, err)

	assert.False(t, result.Full)
	assert.Zero(t, result.RemainingAfter)
	assert.Equal(t, orders.StatusPaid, result.OrderStatus)
	assert.Empty(t, f.tickets.voidedOrders)
	assert.Empty(t, f.inventory.releasedOrders)
	assert.False(t, f.orders.refundedCall)
}

func TestPartialRefund(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)

	result, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Amount:  75.0,
		Reason:  "seat downgrade",
	})
	require.NoError(t, err)

	assert.False(t, result.Full)
	assert.Equal(t, 165.0, result.RemainingAfter)
	assert.Equal(t, orders.StatusPaid, result.OrderStatus)

	// Partial refunds only move money; tickets and seats are untouched
	assert.Empty(t, f.tickets.voidedOrders)
	assert.Empty(t, f.inventory.releasedOrders)
	assert.False(t, f.orders.refundedCall)
}

func TestRefundExceedsRemaining(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)
	f.payments.refunded = 200.0

	_, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Amount:  100.0,
		Reason:  "oops",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAmountExceedsOrder))
	assert.Empty(t, f.payments.records)
}

func TestRefundFullyRefundedOrder(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)
	f.payments.refunded = 240.0

	_, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Full:    true,
		Reason:  "again",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRefundRequiresPaidOrder(t *testing.T) {
	f := newRefundFixture(orders.StatusPending, 240.0)

	_, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: f.orderID,
		Amount:  240.0,
		Reason:  "not yet",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestRefundValidation(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)

	_, err := f.svc.Refund(context.Background(), &RefundInput{OrderID: f.orderID, Amount: 50.0})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "missing reason")

	_, err = f.svc.Refund(context.Background(), &RefundInput{OrderID: f.orderID, Amount: -5, Reason: "negative"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = f.svc.Refund(context.Background(), &RefundInput{OrderID: f.orderID, Reason: "no amount"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "partial without amount")

	_, err = f.svc.Refund(context.Background(), &RefundInput{OrderID: f.orderID, Full: true, Amount: 50.0, Reason: "both"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation), "full refund naming an amount")
}

func TestRefundOrderNotFound(t *testing.T) {
	f := newRefundFixture(orders.StatusPaid, 240.0)

	_, err := f.svc.Refund(context.Background(), &RefundInput{
		OrderID: uuid.New(),
		Amount:  10.0,
		Reason:  "ghost order",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
