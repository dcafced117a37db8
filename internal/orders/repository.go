package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, order *Order, lines []OrderLineItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByReference(ctx context.Context, reference string) (*Order, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)

	// TransitionStatus is the guarded state-machine update: it only fires
	// when the current status matches, and reports whether it did.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error)

	DeleteCascade(ctx context.Context, orderID uuid.UUID) error
	ListStale(ctx context.Context, statuses []string, olderThan time.Time) ([]Order, error)

	CreateTemporaryUser(ctx context.Context, user *TemporaryUser) error
	FindTemporaryUserByEmail(ctx context.Context, email string) (*TemporaryUser, error)
	PurgeExpiredTemporaryUsers(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, order *Order, lines []OrderLineItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
		}
		order.LineItems = lines
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("User").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetByReference(ctx context.Context, reference string) (*Order, error) {
	var order Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&order, "reference = ?", reference).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Order{}).
		Where("reference = ?", reference).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from []string, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteCascade removes the order and its line items. Only checkout
// compensation uses this, before the order was ever exposed to the buyer.
func (r *repository) DeleteCascade(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&OrderLineItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Order{}, "id = ?", orderID).Error
	})
}

func (r *repository) ListStale(ctx context.Context, statuses []string, olderThan time.Time) ([]Order, error) {
	var stale []Order
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, olderThan).
		Order("updated_at ASC").
		Limit(100).
		Find(&stale).Error
	return stale, err
}

func (r *repository) CreateTemporaryUser(ctx context.Context, user *TemporaryUser) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) FindTemporaryUserByEmail(ctx context.Context, email string) (*TemporaryUser, error) {
	var user TemporaryUser
	err := r.db.WithContext(ctx).
		Where("email = ? AND expires_at > ?", email, time.Now()).
		Order("created_at DESC").
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) PurgeExpiredTemporaryUsers(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&TemporaryUser{})
	return res.RowsAffected, res.Error
}
