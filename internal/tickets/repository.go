package tickets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CreateBatch(ctx context.Context, batch []Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]Ticket, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	VoidByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateBatch(ctx context.Context, batch []Ticket) error {
	return r.db.WithContext(ctx).Create(&batch).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	err := r.db.WithContext(ctx).First(&ticket, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]Ticket, error) {
	var list []Ticket
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seat_label ASC").
		Find(&list).Error
	return list, err
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) VoidByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("order_id = ? AND status = ?", orderID, StatusIssued).
		Updates(map[string]interface{}{"status": StatusVoid, "voided_at": now})
	return res.RowsAffected, res.Error
}
