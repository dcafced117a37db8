package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*Payment, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]Payment, error)

	// TransitionStatus only fires when the current status matches, the same
	// conditional-update guard the rest of the system uses.
	TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error)

	// CompletedExists reports whether the order already has a COMPLETED payment
	CompletedExists(ctx context.Context, orderID uuid.UUID) (bool, error)

	// RefundedTotal sums refund rows for the order as a positive figure
	RefundedTotal(ctx context.Context, orderID uuid.UUID) (float64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, payment *Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) GetByProviderPaymentID(ctx context.Context, provider, providerPaymentID string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).
		First(&payment, "provider = ? AND provider_payment_id = ?", provider, providerPaymentID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	var list []Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *repository) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status IN ?", paymentID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CompletedExists(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Payment{}).
		Where("order_id = ? AND status = ?", orderID, StatusCompleted).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) RefundedTotal(ctx context.Context, orderID uuid.UUID) (float64, error) {
	var total *float64
	err := r.db.WithContext(ctx).Model(&Payment{}).
		Select("SUM(amount)").
		Where("order_id = ? AND status = ?", orderID, StatusRefunded).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	// refund rows carry negative amounts
	return -*total, nil
}
