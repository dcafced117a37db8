package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stagepass/internal/shared/apperr"
	"stagepass/internal/shared/config"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	payments map[uuid.UUID]*Payment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{payments: make(map[uuid.UUID]*Payment)}
}

func (f *fakeRepo) Create(ctx context.Context, payment *Payment) error {
	f.payments[payment.ID] = payment
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	payment, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payment, nil
}

func (f *fakeRepo) GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*Payment, error) {
	for _, payment := range f.payments {
		if payment.Provider == provider && payment.ProviderPaymentID != nil &&
			*payment.ProviderPaymentID == providerPaymentID {
			return payment, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	var list []Payment
	for _, payment := range f.payments {
		if payment.OrderID == orderID {
			list = append(list, *payment)
		}
	}
	return list, nil
}

func (f *fakeRepo) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	payment, ok := f.payments[paymentID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range from {
		if payment.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	payment.Status = to
	if id, ok := updates["provider_payment_id"].(string); ok {
		payment.ProviderPaymentID = &id
	}
	if url, ok := updates["redirect_url"].(string); ok {
		payment.RedirectURL = url
	}
	if code, ok := updates["failure_code"].(string); ok {
		payment.FailureCode = code
	}
	return true, nil
}

func (f *fakeRepo) CompletedExists(ctx context.Context, orderID uuid.UUID) (bool, error) {
	for _, payment := range f.payments {
		if payment.OrderID == orderID && payment.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) RefundedTotal(ctx context.Context, orderID uuid.UUID) (float64, error) {
	var total float64
	for _, payment := range f.payments {
		if payment.OrderID == orderID && payment.Status == StatusRefunded {
			total += payment.Amount
		}
	}
	return -total, nil
}

type fakeProvider struct {
	name       string
	intentErr  error
	intent     *IntentResponse
	goodSig    string
	lastIntent *IntentRequest
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateIntent(ctx context.Context, req *IntentRequest) (*IntentResponse, error) {
	f.lastIntent = req
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return f.intent, nil
}

func (f *fakeProvider) VerifySignature(body []byte, signature string) bool {
	return signature == f.goodSig
}

func newTestProvider() *fakeProvider {
	return &fakeProvider{
		name:    "cardlink",
		goodSig: "valid-sig",
		intent: &IntentResponse{
			ProviderPaymentID: "cl_12345",
			RedirectURL:       "https://pay.cardlink.test/cl_12345",
			ExpiresAt:         time.Now().Add(15 * time.Minute),
		},
	}
}

func paymentConfig() *config.PaymentConfig {
	return &config.PaymentConfig{
		Provider:     "cardlink",
		Currency:     "EUR",
		ReturnURL:    "https://stagepass.test/checkout/return",
		IntentExpiry: 15 * time.Minute,
	}
}

func initiateInput() *InitiateInput {
	return &InitiateInput{
		OrderID:        uuid.New(),
		OrderReference: "ORD-20260831-K7XM2Q",
		Amount:         240.0,
		Currency:       "EUR",
	}
}

func TestInitiate(t *testing.T) {
	repo := newFakeRepo()
	provider := newTestProvider()
	svc := NewService(repo, paymentConfig(), provider)

	payment, resp, err := svc.Initiate(context.Background(), initiateInput())
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, payment.Status)
	require.NotNil(t, payment.ProviderPaymentID)
	assert.Equal(t, "cl_12345", *payment.ProviderPaymentID)
	assert.Equal(t, "https://pay.cardlink.test/cl_12345", resp.RedirectURL)

	// the intent carries the rounded decimal amount
	require.NotNil(t, provider.lastIntent)
	assert.True(t, provider.lastIntent.Amount.Equal(decimal.NewFromFloat(240.0)))
}

func TestInitiateUnconfiguredProvider(t *testing.T) {
	cfg := paymentConfig()
	cfg.Provider = "stripe"
	svc := NewService(newFakeRepo(), cfg, newTestProvider())

	_, _, err := svc.Initiate(context.Background(), initiateInput())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindProvider))
}

func TestInitiateProviderUnavailable(t *testing.T) {
	repo := newFakeRepo()
	provider := newTestProvider()
	provider.intentErr = errors.New("connection refused")
	svc := NewService(repo, paymentConfig(), provider)

	_, _, err := svc.Initiate(context.Background(), initiateInput())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindProvider))

	// the attempt row is left FAILED with a failure code, not dangling PENDING
	require.Len(t, repo.payments, 1)
	for _, payment := range repo.payments {
		assert.Equal(t, StatusFailed, payment.Status)
		assert.Equal(t, "PROVIDER_UNAVAILABLE", payment.FailureCode)
	}
}

func reconcileSetup(t *testing.T) (*fakeRepo, *fakeProvider, Service, *Payment) {
	t.Helper()
	repo := newFakeRepo()
	provider := newTestProvider()
	svc := NewService(repo, paymentConfig(), provider)

	payment, _, err := svc.Initiate(context.Background(), initiateInput())
	require.NoError(t, err)
	return repo, provider, svc, payment
}

func callbackBody(t *testing.T, status string, amount float64) []byte {
	t.Helper()
	body, err := json.Marshal(CallbackPayload{
		ProviderPaymentID: "cl_12345",
		Status:            status,
		Amount:            decimal.NewFromFloat(amount),
		Currency:          "EUR",
	})
	require.NoError(t, err)
	return body
}

func TestReconcileCompleted(t *testing.T) {
	repo, _, svc, payment := reconcileSetup(t)

	event, err := svc.Reconcile(context.Background(), "cardlink",
		callbackBody(t, "completed", 240.0), "valid-sig")
	require.NoError(t, err)

	assert.Equal(t, payment.OrderID, event.OrderID)
	assert.Equal(t, payment.ID, event.PaymentID)
	assert.Equal(t, OutcomeCompleted, event.Outcome)
	assert.False(t, event.Replayed)
	assert.Equal(t, StatusCompleted, repo.payments[payment.ID].Status)
}

func TestReconcileFailedCarriesReason(t *testing.T) {
	repo, _, svc, payment := reconcileSetup(t)

	body, err := json.Marshal(CallbackPayload{
		ProviderPaymentID: "cl_12345",
		Status:            "declined",
		Reason:            "insufficient_funds",
	})
	require.NoError(t, err)

	event, err := svc.Reconcile(context.Background(), "cardlink", body, "valid-sig")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, event.Outcome)
	assert.Equal(t, StatusFailed, repo.payments[payment.ID].Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS", repo.payments[payment.ID].FailureCode)
}

func TestReconcileReplay(t *testing.T) {
	repo, _, svc, payment := reconcileSetup(t)

	first, err := svc.Reconcile(context.Background(), "cardlink",
		callbackBody(t, "completed", 240.0), "valid-sig")
	require.NoError(t, err)
	require.False(t, first.Replayed)

	// Duplicate delivery of the same callback is a no-op with Replayed set
	second, err := svc.Reconcile(context.Background(), "cardlink",
		callbackBody(t, "completed", 240.0), "valid-sig")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, OutcomeCompleted, second.Outcome)
	assert.Equal(t, StatusCompleted, repo.payments[payment.ID].Status)
}

func TestReconcileSecondCompletionParked(t *testing.T) {
	repo := newFakeRepo()
	provider := newTestProvider()
	svc := NewService(repo, paymentConfig(), provider)
	ctx := context.Background()

	input := initiateInput()
	first, _, err := svc.Initiate(ctx, input)
	require.NoError(t, err)

	// A retried checkout opens a second intent against the same order
	provider.intent = &IntentResponse{
		ProviderPaymentID: "cl_67890",
		RedirectURL:       "https://pay.cardlink.test/cl_67890",
		ExpiresAt:         time.Now().Add(15 * time.Minute),
	}
	second, _, err := svc.Initiate(ctx, input)
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, "cardlink", callbackBody(t, "completed", 240.0), "valid-sig")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, repo.payments[first.ID].Status)

	// Both charges succeeding means money moved twice; the second one is
	// parked for manual review instead of settling the order again
	body, err := json.Marshal(CallbackPayload{
		ProviderPaymentID: "cl_67890",
		Status:            "completed",
		Amount:            decimal.NewFromFloat(240.0),
		Currency:          "EUR",
	})
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, "cardlink", body, "valid-sig")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCallback))
	assert.Equal(t, StatusFailed, repo.payments[second.ID].Status)
	assert.Equal(t, "DUPLICATE_COMPLETION", repo.payments[second.ID].FailureCode)
	assert.Equal(t, StatusCompleted, repo.payments[first.ID].Status)
}

func TestReconcileUnknownProvider(t *testing.T) {
	_, _, svc, _ := reconcileSetup(t)

	_, err := svc.Reconcile(context.Background(), "stripe",
		callbackBody(t, "completed", 240.0), "valid-sig")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCallback))
}

func TestReconcileBadSignature(t *testing.T) {
	_, _, svc, _ := reconcileSetup(t)

	_, err := svc.Reconcile(context.Background(), "cardlink",
		callbackBody(t, "completed", 240.0), "forged")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCallback))
}

func TestReconcileMalformedBody(t *testing.T) {
	_, _, svc, _ := reconcileSetup(t)

	_, err := svc.Reconcile(context.Background(), "cardlink",
		[]byte("{not json"), "valid-sig")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReconcileMissingPaymentID(t *testing.T) {
	_, _, svc, _ := reconcileSetup(t)

	_, err := svc.Reconcile(context.Background(), "cardlink",
		[]byte(`{"status":"completed"}`), "valid-sig")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReconcileUnknownPayment(t *testing.T) {
	_, _, svc, _ := reconcileSetup(t)

	body, err := json.Marshal(CallbackPayload{ProviderPaymentID: "cl_nope", Status: "completed"})
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background(), "cardlink", body, "valid-sig")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCallback))
}

func TestReconcileAmountMismatch(t *testing.T) {
	_, _, svc, _ := reconcileSetup(t)

	_, err := svc.Reconcile(context.Background(), "cardlink",
		callbackBody(t, "completed", 199.99), "valid-sig")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCallback))
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		status  string
		reason  string
		outcome string
		code    string
		wantErr bool
	}{
		{"completed", "", OutcomeCompleted, "", false},
		{"Succeeded", "", OutcomeCompleted, "", false},
		{"paid", "", OutcomeCompleted, "", false},
		{"failed", "card_declined", OutcomeFailed, "CARD_DECLINED", false},
		{"declined", "", OutcomeFailed, "DECLINED", false},
		{"cancelled", "", OutcomeCancelled, "EXPIRED", false},
		{"canceled", "", OutcomeCancelled, "EXPIRED", false},
		{"expired", "", OutcomeCancelled, "EXPIRED", false},
		{"on_hold", "", "", "", true},
	}

	for _, tc := range cases {
		outcome, code, err := mapProviderStatus(tc.status, tc.reason)
		if tc.wantErr {
			assert.Error(t, err, tc.status)
			continue
		}
		require.NoError(t, err, tc.status)
		assert.Equal(t, tc.outcome, outcome, tc.status)
		assert.Equal(t, tc.code, code, tc.status)
	}
}

func TestRecordRefund(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, paymentConfig(), newTestProvider())
	orderID := uuid.New()

	refund, err := svc.RecordRefund(context.Background(), orderID, 120.0, "EUR")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refund.Status)
	assert.Equal(t, -120.0, refund.Amount)

	total, err := svc.RefundedTotal(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, total)
}

func TestRecordRefundRejectsNonPositive(t *testing.T) {
	svc := NewService(newFakeRepo(), paymentConfig(), newTestProvider())

	_, err := svc.RecordRefund(context.Background(), uuid.New(), 0, "EUR")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestGetPaymentNotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), paymentConfig(), newTestProvider())

	_, err := svc.GetPayment(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}
