package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"stagepass/internal/shared/apperr"
	"stagepass/internal/shared/config"
	"stagepass/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InitiateInput carries what the orchestrator knows about the order being paid
type InitiateInput struct {
	OrderID        uuid.UUID
	OrderReference string
	Amount         float64
	Currency       string
}

// Service interface defines the contract for payment operations
type Service interface {
	Initiate(ctx context.Context, input *InitiateInput) (*Payment, *InitiateResponse, error)
	Reconcile(ctx context.Context, providerName string, body []byte, signature string) (*SettlementEvent, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	RecordRefund(ctx context.Context, orderID uuid.UUID, amount float64, currency string) (*Payment, error)
	RefundedTotal(ctx context.Context, orderID uuid.UUID) (float64, error)
}

type service struct {
	repo      Repository
	providers map[string]ProviderClient
	cfg       *config.PaymentConfig
	logger    *logger.Logger
}

func NewService(repo Repository, cfg *config.PaymentConfig, providers ...ProviderClient) Service {
	byName := make(map[string]ProviderClient, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &service{
		repo:      repo,
		providers: byName,
		cfg:       cfg,
		logger:    logger.GetDefault(),
	}
}

// Initiate persists the payment attempt before calling the gateway, so a
// crash mid-call leaves a PENDING row to reconcile instead of silence.
func (s *service) Initiate(ctx context.Context, input *InitiateInput) (*Payment, *InitiateResponse, error) {
	provider, ok := s.providers[s.cfg.Provider]
	if !ok {
		return nil, nil, apperr.Provider(nil, "payment provider %s is not configured", s.cfg.Provider)
	}

	payment := &Payment{
		ID:       uuid.New(),
		OrderID:  input.OrderID,
		Provider: provider.Name(),
		Status:   StatusPending,
		Amount:   input.Amount,
		Currency: input.Currency,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, nil, apperr.Persistence(err, "failed to record payment attempt")
	}

	intent, err := provider.CreateIntent(ctx, &IntentRequest{
		PaymentID:      payment.ID.String(),
		OrderReference: input.OrderReference,
		Amount:         decimal.NewFromFloat(input.Amount).Round(2),
		Currency:       input.Currency,
		ReturnURL:      s.cfg.ReturnURL,
		ExpiresIn:      int(s.cfg.IntentExpiry.Seconds()),
	})
	if err != nil {
		if _, ferr := s.repo.TransitionStatus(ctx, payment.ID,
			[]string{StatusPending}, StatusFailed,
			map[string]interface{}{"failure_code": "PROVIDER_UNAVAILABLE"}); ferr != nil {
			s.logger.WithError(ferr).Error("failed to mark payment failed after provider error",
				"payment_id", payment.ID.String())
		}
		return nil, nil, apperr.Provider(err, "payment provider is unavailable")
	}

	moved, err := s.repo.TransitionStatus(ctx, payment.ID,
		[]string{StatusPending}, StatusProcessing,
		map[string]interface{}{
			"provider_payment_id": intent.ProviderPaymentID,
			"redirect_url":        intent.RedirectURL,
		})
	if err != nil || !moved {
		return nil, nil, apperr.Persistence(err, "failed to attach provider intent to payment %s", payment.ID)
	}

	payment.Status = StatusProcessing
	payment.ProviderPaymentID = &intent.ProviderPaymentID
	payment.RedirectURL = intent.RedirectURL

	return payment, &InitiateResponse{
		PaymentID:   payment.ID.String(),
		RedirectURL: intent.RedirectURL,
		ExpiresAt:   intent.ExpiresAt,
	}, nil
}

// Reconcile turns a raw provider callback into a settlement event, applying
// it to the payment row exactly once. A callback for a payment already in a
// terminal state yields Replayed=true and changes nothing.
func (s *service) Reconcile(ctx context.Context, providerName string, body []byte, signature string) (*SettlementEvent, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, apperr.InvalidCallback("unknown provider %s", providerName)
	}

	if !provider.VerifySignature(body, signature) {
		return nil, apperr.InvalidCallback("signature verification failed")
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperr.Validation("malformed callback body")
	}
	if payload.ProviderPaymentID == "" {
		return nil, apperr.Validation("callback missing payment id")
	}

	outcome, failureCode, err := mapProviderStatus(payload.Status, payload.Reason)
	if err != nil {
		return nil, err
	}

	payment, err := s.repo.GetByProviderPaymentID(ctx, providerName, payload.ProviderPaymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.InvalidCallback("no payment for provider id %s", payload.ProviderPaymentID)
		}
		return nil, apperr.Persistence(err, "failed to load payment for callback")
	}

	if !payload.Amount.IsZero() {
		expected := decimal.NewFromFloat(payment.Amount).Round(2)
		if !payload.Amount.Round(2).Equal(expected) {
			return nil, apperr.InvalidCallback("callback amount %s does not match payment amount %s",
				payload.Amount.String(), expected.String())
		}
	}

	if payment.IsTerminal() {
		s.logger.LogSettlementApplied(ctx, payment.OrderID.String(), payment.ID.String(), payment.Status, true)
		return &SettlementEvent{
			OrderID:   payment.OrderID,
			PaymentID: payment.ID,
			Outcome:   outcomeForStatus(payment.Status),
			Replayed:  true,
		}, nil
	}

	if outcome == OutcomeCompleted {
		// At most one payment completes per order. A second gateway charge
		// means money moved twice; park it and leave the order alone.
		dup, err := s.repo.CompletedExists(ctx, payment.OrderID)
		if err != nil {
			return nil, apperr.Persistence(err, "failed to check completed payments for order %s", payment.OrderID)
		}
		if dup {
			if _, ferr := s.repo.TransitionStatus(ctx, payment.ID,
				[]string{StatusPending, StatusProcessing}, StatusFailed,
				map[string]interface{}{"failure_code": "DUPLICATE_COMPLETION"}); ferr != nil {
				s.logger.WithError(ferr).Error("failed to park duplicate completion",
					"payment_id", payment.ID.String())
			}
			s.logger.Error("second completed payment for order, needs manual review",
				"order_id", payment.OrderID.String(),
				"payment_id", payment.ID.String())
			return nil, apperr.InvalidCallback("order %s already has a completed payment", payment.OrderID)
		}
	}

	toStatus := statusForOutcome(outcome)
	updates := map[string]interface{}{}
	if failureCode != "" {
		updates["failure_code"] = failureCode
	}
	moved, err := s.repo.TransitionStatus(ctx, payment.ID,
		[]string{StatusPending, StatusProcessing}, toStatus, updates)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to settle payment %s", payment.ID)
	}
	if !moved {
		// Lost the race to a concurrent delivery of the same callback
		s.logger.LogSettlementApplied(ctx, payment.OrderID.String(), payment.ID.String(), toStatus, true)
		return &SettlementEvent{
			OrderID:   payment.OrderID,
			PaymentID: payment.ID,
			Outcome:   outcome,
			Replayed:  true,
		}, nil
	}

	s.logger.LogSettlementApplied(ctx, payment.OrderID.String(), payment.ID.String(), toStatus, false)
	return &SettlementEvent{
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		Outcome:   outcome,
		Replayed:  false,
	}, nil
}

func (s *service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("payment %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load payment %s", id)
	}
	return payment, nil
}

// RecordRefund writes a refund row with a negative amount against the order
func (s *service) RecordRefund(ctx context.Context, orderID uuid.UUID, amount float64, currency string) (*Payment, error) {
	if amount <= 0 {
		return nil, apperr.Validation("refund amount must be positive")
	}

	refund := &Payment{
		ID:       uuid.New(),
		OrderID:  orderID,
		Provider: s.cfg.Provider,
		Status:   StatusRefunded,
		Amount:   -amount,
		Currency: currency,
	}
	if err := s.repo.Create(ctx, refund); err != nil {
		return nil, apperr.Persistence(err, "failed to record refund")
	}
	return refund, nil
}

func (s *service) RefundedTotal(ctx context.Context, orderID uuid.UUID) (float64, error) {
	total, err := s.repo.RefundedTotal(ctx, orderID)
	if err != nil {
		return 0, apperr.Persistence(err, "failed to sum refunds for order %s", orderID)
	}
	return total, nil
}

func mapProviderStatus(status, reason string) (outcome, failureCode string, err error) {
	switch strings.ToLower(status) {
	case "completed", "succeeded", "paid":
		return OutcomeCompleted, "", nil
	case "failed", "declined":
		code := strings.ToUpper(reason)
		if code == "" {
			code = "DECLINED"
		}
		return OutcomeFailed, code, nil
	case "cancelled", "canceled", "expired":
		return OutcomeCancelled, "EXPIRED", nil
	default:
		return "", "", apperr.Validation("unrecognized callback status %q", status)
	}
}

func statusForOutcome(outcome string) string {
	switch outcome {
	case OutcomeCompleted:
		return StatusCompleted
	case OutcomeFailed:
		return StatusFailed
	default:
		return StatusCancelled
	}
}

func outcomeForStatus(status string) string {
	switch status {
	case StatusCompleted, StatusRefunded:
		return OutcomeCompleted
	case StatusFailed:
		return OutcomeFailed
	default:
		return OutcomeCancelled
	}
}
