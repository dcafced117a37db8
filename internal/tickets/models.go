package tickets

import (
	"time"

	"github.com/google/uuid"
)

// Ticket statuses
const (
	StatusIssued = "ISSUED"
	StatusVoid   = "VOID"
)

// Ticket is an admission credential for one seat on a paid order
type Ticket struct {
	ID      uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID uuid.UUID  `gorm:"type:uuid;index;not null" json:"order_id"`
	EventID uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	SeatID  *uuid.UUID `gorm:"type:uuid;index" json:"seat_id,omitempty"`

	// Number is the human-readable credential, e.g. SUMFEST-VIP-A12-9F3C2B71
	Number string `gorm:"type:varchar(64);uniqueIndex;not null" json:"number"`

	SeatLabel string  `gorm:"type:varchar(50);not null" json:"seat_label"`
	Category  string  `gorm:"type:varchar(20);not null" json:"category"`
	Price     float64 `gorm:"not null" json:"price"`
	Status    string  `gorm:"type:varchar(10);check:status IN ('ISSUED', 'VOID');default:'ISSUED'" json:"status"`

	IssuedAt time.Time  `json:"issued_at"`
	VoidedAt *time.Time `json:"voided_at,omitempty"`
}

// TableName sets the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) IsVoid() bool {
	return t.Status == StatusVoid
}

// IssueLine is one order line to issue tickets for. A seat line carries the
// seat id and Quantity 1; a GENERAL or VIP line has a zero SeatID and mints
// Quantity tickets under the zone label.
type IssueLine struct {
	SeatID    uuid.UUID
	SeatLabel string
	Category  string
	Price     float64
	Quantity  int
}

// IssueRequest carries everything ticket issuance needs about the paid order
type IssueRequest struct {
	OrderID        uuid.UUID
	OrderReference string
	EventID        uuid.UUID
	EventName      string
	TicketPrefix   string
	Lines          []IssueLine
}

// TicketResponse for API responses
type TicketResponse struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	SeatLabel string     `json:"seat_label"`
	Category  string     `json:"category"`
	Price     float64    `json:"price"`
	Status    string     `json:"status"`
	IssuedAt  time.Time  `json:"issued_at"`
	VoidedAt  *time.Time `json:"voided_at,omitempty"`
}

func (t *Ticket) ToResponse() TicketResponse {
	return TicketResponse{
		ID:        t.ID.String(),
		Number:    t.Number,
		SeatLabel: t.SeatLabel,
		Category:  t.Category,
		Price:     t.Price,
		Status:    t.Status,
		IssuedAt:  t.IssuedAt,
		VoidedAt:  t.VoidedAt,
	}
}
