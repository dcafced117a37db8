package orders

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"stagepass/internal/shared/apperr"
	"stagepass/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const referenceCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// LineInput is one priced line entering an order. A zero SeatID means a
// GENERAL or VIP quantity line; a seat line has Quantity 1.
type LineInput struct {
	SeatID    uuid.UUID
	ZoneID    uuid.UUID
	SeatLabel string
	Category  string
	UnitPrice float64
	Quantity  int
}

// BuyerInput identifies the guest purchaser
type BuyerInput struct {
	Email string
	Name  string
	Phone string
}

// CreateOrderInput carries everything needed for a pending order. OrderID is
// allocated by the caller so seats can be reserved against it first.
type CreateOrderInput struct {
	OrderID       uuid.UUID
	EventID       uuid.UUID
	Buyer         BuyerInput
	Lines         []LineInput
	ExpectedTotal float64
	Currency      string
}

// Service interface defines the contract for order lifecycle operations
type Service interface {
	CreatePendingOrder(ctx context.Context, input *CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderStatus(ctx context.Context, id uuid.UUID) (*OrderStatusResponse, error)

	MarkProcessing(ctx context.Context, orderID uuid.UUID) error
	MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID, reason string) error
	MarkRefunded(ctx context.Context, orderID uuid.UUID) error

	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	ListStaleOrders(ctx context.Context, olderThan time.Time) ([]Order, error)
	PurgeExpiredTemporaryUsers(ctx context.Context) (int64, error)
}

type service struct {
	repo             Repository
	priceTolerance   float64
	tempUserLifetime time.Duration
	logger           *logger.Logger
}

func NewService(repo Repository, priceTolerance float64, tempUserLifetime time.Duration) Service {
	return &service{
		repo:             repo,
		priceTolerance:   priceTolerance,
		tempUserLifetime: tempUserLifetime,
		logger:           logger.GetDefault(),
	}
}

// CreatePendingOrder snapshots the priced lines into a PENDING order. The
// quoted total the buyer saw must match the authoritative line prices within
// tolerance, otherwise the checkout is rejected before any money moves.
func (s *service) CreatePendingOrder(ctx context.Context, input *CreateOrderInput) (*Order, error) {
	if len(input.Lines) == 0 {
		return nil, apperr.Validation("order must contain at least one line")
	}
	if input.Buyer.Email == "" || input.Buyer.Name == "" {
		return nil, apperr.Validation("buyer email and name are required")
	}

	var total float64
	for _, line := range input.Lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		if line.SeatID != uuid.Nil && qty != 1 {
			return nil, apperr.Validation("a seat line covers exactly one seat")
		}
		total += line.UnitPrice * float64(qty)
	}
	if math.Abs(total-input.ExpectedTotal) > s.priceTolerance {
		return nil, apperr.PriceMismatch("quoted total %.2f does not match current price %.2f", input.ExpectedTotal, total)
	}

	user, err := s.findOrCreateTemporaryUser(ctx, input.Buyer)
	if err != nil {
		return nil, err
	}

	reference, err := s.generateReference(ctx)
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:          input.OrderID,
		Reference:   reference,
		EventID:     input.EventID,
		UserID:      user.ID,
		Status:      StatusPending,
		TotalAmount: total,
		Currency:    input.Currency,
	}

	lines := make([]OrderLineItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		var seatRef *uuid.UUID
		if line.SeatID != uuid.Nil {
			seatID := line.SeatID
			seatRef = &seatID
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, OrderLineItem{
			SeatID:    seatRef,
			ZoneID:    line.ZoneID,
			SeatLabel: line.SeatLabel,
			Category:  line.Category,
			UnitPrice: line.UnitPrice,
			Quantity:  qty,
		})
	}

	if err := s.repo.Create(ctx, order, lines); err != nil {
		return nil, apperr.Persistence(err, "failed to create order")
	}
	order.User = user

	s.logger.LogOrderCreated(ctx, order.ID.String(), order.Reference, input.Buyer.Email)
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load order %s", id)
	}
	return order, nil
}

func (s *service) GetOrderStatus(ctx context.Context, id uuid.UUID) (*OrderStatusResponse, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := order.ToStatusResponse()
	return &resp, nil
}

func (s *service) MarkProcessing(ctx context.Context, orderID uuid.UUID) error {
	moved, err := s.repo.TransitionStatus(ctx, orderID, transitionsInto(StatusProcessing), StatusProcessing, nil)
	if err != nil {
		return apperr.Persistence(err, "failed to mark order %s processing", orderID)
	}
	if moved {
		return nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusProcessing {
		return nil
	}
	return apperr.InvalidState("order %s is %s, cannot start payment", orderID, order.Status)
}

// MarkPaid settles the order exactly once. Replays of the same payment are
// no-ops; a second distinct payment against a paid order is a conflict.
func (s *service) MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) error {
	moved, err := s.repo.TransitionStatus(ctx, orderID,
		transitionsInto(StatusPaid), StatusPaid,
		map[string]interface{}{"paid_payment_id": paymentID})
	if err != nil {
		return apperr.Persistence(err, "failed to mark order %s paid", orderID)
	}
	if moved {
		return nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusPaid {
		if order.PaidPaymentID != nil && *order.PaidPaymentID == paymentID {
			return nil
		}
		return apperr.Conflict("order %s already paid by a different payment", orderID)
	}
	return apperr.InvalidState("order %s is %s, cannot be paid", orderID, order.Status)
}

func (s *service) MarkCancelled(ctx context.Context, orderID uuid.UUID, reason string) error {
	moved, err := s.repo.TransitionStatus(ctx, orderID,
		transitionsInto(StatusCancelled), StatusCancelled,
		map[string]interface{}{"cancel_reason": reason})
	if err != nil {
		return apperr.Persistence(err, "failed to cancel order %s", orderID)
	}
	if moved {
		return nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusCancelled {
		return nil
	}
	return apperr.InvalidState("order %s is %s, cannot be cancelled", orderID, order.Status)
}

func (s *service) MarkRefunded(ctx context.Context, orderID uuid.UUID) error {
	moved, err := s.repo.TransitionStatus(ctx, orderID, transitionsInto(StatusRefunded), StatusRefunded, nil)
	if err != nil {
		return apperr.Persistence(err, "failed to mark order %s refunded", orderID)
	}
	if moved {
		return nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == StatusRefunded {
		return nil
	}
	return apperr.InvalidState("order %s is %s, cannot be refunded", orderID, order.Status)
}

func (s *service) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if err := s.repo.DeleteCascade(ctx, orderID); err != nil {
		return apperr.Persistence(err, "failed to delete order %s", orderID)
	}
	return nil
}

func (s *service) ListStaleOrders(ctx context.Context, olderThan time.Time) ([]Order, error) {
	stale, err := s.repo.ListStale(ctx, []string{StatusPending, StatusProcessing}, olderThan)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to list stale orders")
	}
	return stale, nil
}

func (s *service) PurgeExpiredTemporaryUsers(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeExpiredTemporaryUsers(ctx, time.Now())
	if err != nil {
		return 0, apperr.Persistence(err, "failed to purge expired temporary users")
	}
	return purged, nil
}

func (s *service) findOrCreateTemporaryUser(ctx context.Context, buyer BuyerInput) (*TemporaryUser, error) {
	user, err := s.repo.FindTemporaryUserByEmail(ctx, buyer.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Persistence(err, "failed to look up temporary user")
	}

	user = &TemporaryUser{
		Email:     buyer.Email,
		Name:      buyer.Name,
		Phone:     buyer.Phone,
		ExpiresAt: time.Now().Add(s.tempUserLifetime),
	}
	if err := s.repo.CreateTemporaryUser(ctx, user); err != nil {
		return nil, apperr.Persistence(err, "failed to create temporary user")
	}
	return user, nil
}

// generateReference builds a human-quotable order reference like
// ORD-20260831-K7XM2Q, retrying on the rare collision.
func (s *service) generateReference(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		suffix := make([]byte, 6)
		for i := range suffix {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceCharset))))
			if err != nil {
				return "", apperr.Persistence(err, "failed to generate order reference")
			}
			suffix[i] = referenceCharset[n.Int64()]
		}
		reference := fmt.Sprintf("ORD-%s-%s", time.Now().Format("20060102"), string(suffix))

		exists, err := s.repo.ReferenceExists(ctx, reference)
		if err != nil {
			return "", apperr.Persistence(err, "failed to check order reference")
		}
		if !exists {
			return reference, nil
		}
	}
	return "", apperr.Persistence(nil, "could not allocate a unique order reference")
}
