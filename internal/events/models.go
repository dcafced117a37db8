package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines a seated event on sale
type Event struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	TicketPrefix string    `gorm:"type:varchar(10);uniqueIndex;not null" json:"ticket_prefix"`
	VenueName    string    `gorm:"not null" json:"venue_name"`
	StartsAt     time.Time `gorm:"not null" json:"starts_at"`
	Status       string    `gorm:"type:varchar(20);check:status IN ('DRAFT', 'ON_SALE', 'CLOSED');default:'ON_SALE'" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName sets the table name for Event
func (Event) TableName() string {
	return "events"
}

func (e *Event) IsOnSale() bool {
	return e.Status == "ON_SALE"
}
