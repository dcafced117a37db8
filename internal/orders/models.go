package orders

import (
	"time"

	"github.com/google/uuid"
)

// Order is the financial record of a checkout. Inventory state lives on the
// seats; the order only tracks money and lifecycle.
type Order struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Reference   string    `gorm:"type:varchar(24);uniqueIndex;not null" json:"reference"`
	EventID     uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	UserID      uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	Status      string    `gorm:"type:varchar(20);check:status IN ('PENDING', 'PROCESSING', 'PAID', 'CANCELLED', 'REFUNDED');default:'PENDING'" json:"status"`
	TotalAmount float64   `gorm:"not null" json:"total_amount"`
	Currency    string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`

	// PaidPaymentID records which payment settled the order. It makes
	// MarkPaid idempotent under webhook replays.
	PaidPaymentID *uuid.UUID `gorm:"type:uuid" json:"paid_payment_id,omitempty"`
	CancelReason  string     `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	LineItems []OrderLineItem `json:"line_items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
	User      *TemporaryUser  `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// OrderLineItem captures one priced line at the price it was sold for. Seat
// lines carry a seat reference and quantity 1; GENERAL and VIP lines carry no
// seat and a quantity. Prices are snapshotted at checkout so later zone
// repricing never changes an order.
type OrderLineItem struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID   uuid.UUID  `gorm:"type:uuid;index;not null" json:"order_id"`
	SeatID    *uuid.UUID `gorm:"type:uuid;index" json:"seat_id,omitempty"`
	ZoneID    uuid.UUID  `gorm:"type:uuid;not null" json:"zone_id"`
	SeatLabel string     `gorm:"type:varchar(50);not null" json:"seat_label"`
	Category  string     `gorm:"type:varchar(20);check:category IN ('SEATED', 'GENERAL', 'VIP');default:'SEATED'" json:"category"`
	UnitPrice float64    `gorm:"not null" json:"unit_price"`
	Quantity  int        `gorm:"not null;default:1" json:"quantity"`
	CreatedAt time.Time  `json:"created_at"`
}

// TemporaryUser is a guest checkout identity. Rows expire after the
// configured lifetime and are purged by the reclaimer.
type TemporaryUser struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);index;not null" json:"email"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for Order
func (Order) TableName() string {
	return "orders"
}

// TableName sets the table name for OrderLineItem
func (OrderLineItem) TableName() string {
	return "order_line_items"
}

// TableName sets the table name for TemporaryUser
func (TemporaryUser) TableName() string {
	return "temporary_users"
}

func (o *Order) IsPaid() bool {
	return o.Status == StatusPaid
}

func (o *Order) IsTerminal() bool {
	return o.Status == StatusCancelled || o.Status == StatusRefunded
}

// OrderStatusResponse is the polling payload for GET /orders/:id/status
type OrderStatusResponse struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	SeatCount   int       `json:"seat_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (o *Order) ToStatusResponse() OrderStatusResponse {
	seatCount := 0
	for _, line := range o.LineItems {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		seatCount += qty
	}
	return OrderStatusResponse{
		ID:          o.ID.String(),
		Reference:   o.Reference,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		SeatCount:   seatCount,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}
