package orders

import (
	"context"
	"regexp"
	"testing"
	"time"

	"stagepass/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	orders    map[uuid.UUID]*Order
	tempUsers map[string]*TemporaryUser
	refs      map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:    make(map[uuid.UUID]*Order),
		tempUsers: make(map[string]*TemporaryUser),
		refs:      make(map[string]bool),
	}
}

func (f *fakeRepo) Create(ctx context.Context, order *Order, lines []OrderLineItem) error {
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	order.LineItems = lines
	f.orders[order.ID] = order
	f.refs[order.Reference] = true
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (f *fakeRepo) GetByReference(ctx context.Context, reference string) (*Order, error) {
	for _, order := range f.orders {
		if order.Reference == reference {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	return f.refs[reference], nil
}

func (f *fakeRepo) TransitionStatus(ctx context.Context, orderID uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range from {
		if order.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	order.Status = to
	if paymentID, ok := updates["paid_payment_id"].(uuid.UUID); ok {
		order.PaidPaymentID = &paymentID
	}
	if reason, ok := updates["cancel_reason"].(string); ok {
		order.CancelReason = reason
	}
	return true, nil
}

func (f *fakeRepo) DeleteCascade(ctx context.Context, orderID uuid.UUID) error {
	delete(f.orders, orderID)
	return nil
}

func (f *fakeRepo) ListStale(ctx context.Context, statuses []string, olderThan time.Time) ([]Order, error) {
	return nil, nil
}

func (f *fakeRepo) CreateTemporaryUser(ctx context.Context, user *TemporaryUser) error {
	user.ID = uuid.New()
	f.tempUsers[user.Email] = user
	return nil
}

func (f *fakeRepo) FindTemporaryUserByEmail(ctx context.Context, email string) (*TemporaryUser, error) {
	user, ok := f.tempUsers[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeRepo) PurgeExpiredTemporaryUsers(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestService(repo Repository) Service {
	return NewService(repo, 0.01, 72*time.Hour)
}

func validInput() *CreateOrderInput {
	return &CreateOrderInput{
		OrderID: uuid.New(),
		EventID: uuid.New(),
		Buyer:   BuyerInput{Email: "buyer@example.com", Name: "Jo Buyer"},
		Lines: []LineInput{
			{SeatID: uuid.New(), ZoneID: uuid.New(), SeatLabel: "FLOOR-B4", Category: "SEATED", UnitPrice: 120.0},
			{SeatID: uuid.New(), ZoneID: uuid.New(), SeatLabel: "FLOOR-B5", Category: "SEATED", UnitPrice: 120.0},
		},
		ExpectedTotal: 240.0,
		Currency:      "EUR",
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		// webhook settlement may land before payment initiation moves the order
		{StatusPending, StatusPaid, true},
		{StatusProcessing, StatusPaid, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusPaid, StatusRefunded, true},
		{StatusPaid, StatusCancelled, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusRefunded, StatusPaid, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCreatePendingOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	order, err := svc.CreatePendingOrder(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 240.0, order.TotalAmount)
	assert.Len(t, order.LineItems, 2)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[A-HJ-NP-Z2-9]{6}$`), order.Reference)
	require.NotNil(t, order.User)
	assert.Equal(t, "buyer@example.com", order.User.Email)
}

func TestCreatePendingOrderQuantityLines(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	input := &CreateOrderInput{
		OrderID: uuid.New(),
		EventID: uuid.New(),
		Buyer:   BuyerInput{Email: "buyer@example.com", Name: "Jo Buyer"},
		Lines: []LineInput{
			{SeatID: uuid.New(), ZoneID: uuid.New(), SeatLabel: "FLOOR-B4", Category: "SEATED", UnitPrice: 120.0, Quantity: 1},
			{ZoneID: uuid.New(), SeatLabel: "Standing", Category: "GENERAL", UnitPrice: 45.0, Quantity: 3},
		},
		ExpectedTotal: 255.0,
		Currency:      "EUR",
	}

	order, err := svc.CreatePendingOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 255.0, order.TotalAmount)
	require.Len(t, order.LineItems, 2)
	assert.Nil(t, order.LineItems[1].SeatID)
	assert.Equal(t, 3, order.LineItems[1].Quantity)
	assert.Equal(t, 4, order.ToStatusResponse().SeatCount)
}

func TestCreatePendingOrderRejectsMultiSeatLine(t *testing.T) {
	svc := newTestService(newFakeRepo())

	input := validInput()
	input.Lines[0].Quantity = 2

	_, err := svc.CreatePendingOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreatePendingOrderPriceMismatch(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	input := validInput()
	input.ExpectedTotal = 200.0 // buyer saw a stale quote

	_, err := svc.CreatePendingOrder(context.Background(), input)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindPriceMismatch))
	assert.Empty(t, repo.orders)
}

func TestCreatePendingOrderValidation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	noLines := validInput()
	noLines.Lines = nil
	noLines.ExpectedTotal = 0
	_, err := svc.CreatePendingOrder(context.Background(), noLines)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	noBuyer := validInput()
	noBuyer.Buyer.Email = ""
	_, err = svc.CreatePendingOrder(context.Background(), noBuyer)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreatePendingOrderReusesTemporaryUser(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	first, err := svc.CreatePendingOrder(context.Background(), validInput())
	require.NoError(t, err)

	second, err := svc.CreatePendingOrder(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Len(t, repo.tempUsers, 1)
}

func TestMarkPaidIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreatePendingOrder(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessing(ctx, order.ID))

	paymentID := uuid.New()
	require.NoError(t, svc.MarkPaid(ctx, order.ID, paymentID))
	assert.Equal(t, StatusPaid, repo.orders[order.ID].Status)

	// Same payment settling again is a no-op
	require.NoError(t, svc.MarkPaid(ctx, order.ID, paymentID))

	// A different payment against a paid order is a conflict
	err = svc.MarkPaid(ctx, order.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestMarkPaidOnCancelledOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreatePendingOrder(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.MarkCancelled(ctx, order.ID, "ABANDONED"))

	err = svc.MarkPaid(ctx, order.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestMarkCancelledIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreatePendingOrder(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.MarkCancelled(ctx, order.ID, "ABANDONED"))
	require.NoError(t, svc.MarkCancelled(ctx, order.ID, "ABANDONED"))
	assert.Equal(t, "ABANDONED", repo.orders[order.ID].CancelReason)

	// But a paid order cannot be cancelled
	paid, err := svc.CreatePendingOrder(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessing(ctx, paid.ID))
	require.NoError(t, svc.MarkPaid(ctx, paid.ID, uuid.New()))

	err = svc.MarkCancelled(ctx, paid.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))
}

func TestMarkRefundedRequiresPaid(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	order, err := svc.CreatePendingOrder(ctx, validInput())
	require.NoError(t, err)

	err = svc.MarkRefunded(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	require.NoError(t, svc.MarkProcessing(ctx, order.ID))
	require.NoError(t, svc.MarkPaid(ctx, order.ID, uuid.New()))
	require.NoError(t, svc.MarkRefunded(ctx, order.ID))
	require.NoError(t, svc.MarkRefunded(ctx, order.ID)) // idempotent
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.GetOrder(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestToStatusResponse(t *testing.T) {
	order := &Order{
		ID:          uuid.New(),
		Reference:   "ORD-20260831-K7XM2Q",
		Status:      StatusPaid,
		TotalAmount: 240.0,
		Currency:    "EUR",
		LineItems:   []OrderLineItem{{SeatLabel: "FLOOR-B4"}, {SeatLabel: "FLOOR-B5"}},
	}

	resp := order.ToStatusResponse()
	assert.Equal(t, order.ID.String(), resp.ID)
	assert.Equal(t, StatusPaid, resp.Status)
	assert.Equal(t, 2, resp.SeatCount)
}
