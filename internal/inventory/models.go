package inventory

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Seat statuses. Exactly one at a time; SOLD is terminal until a refund
// releases the seat back to AVAILABLE.
const (
	SeatAvailable   = "AVAILABLE"
	SeatReserved    = "RESERVED"
	SeatSold        = "SOLD"
	SeatBlocked     = "BLOCKED"
	SeatUnavailable = "UNAVAILABLE"
)

// Zone defines a priced venue zone (floor, balcony, GA pit, VIP box)
type Zone struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID   uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	Name      string    `gorm:"not null" json:"name"`
	Category  string    `gorm:"type:varchar(20);check:category IN ('SEATED', 'GENERAL', 'VIP');default:'SEATED'" json:"category"`
	BasePrice float64   `gorm:"not null" json:"base_price"`
	Capacity  int       `gorm:"not null;default:0" json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Seats []Seat `json:"seats,omitempty" gorm:"foreignKey:ZoneID;constraint:OnDelete:CASCADE;"`
}

// Seat defines a physical seat within a zone
type Seat struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ZoneID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_zone_row_number" json:"zone_id"`
	Row    string    `gorm:"not null;uniqueIndex:idx_zone_row_number" json:"row"`
	Number int       `gorm:"not null;uniqueIndex:idx_zone_row_number" json:"number"`
	Price  float64   `gorm:"not null" json:"price"`
	Status string    `gorm:"type:varchar(20);check:status IN ('AVAILABLE', 'RESERVED', 'SOLD', 'BLOCKED', 'UNAVAILABLE');default:'AVAILABLE'" json:"status"`

	// OrderID is the order currently holding the seat in RESERVED or SOLD.
	// Transitions driven by an order filter on it, so a release for order A
	// can never touch a seat order B has since taken.
	OrderID *uuid.UUID `gorm:"type:uuid;index" json:"order_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Zone *Zone `json:"zone,omitempty" gorm:"foreignKey:ZoneID;constraint:OnDelete:CASCADE;"`
}

// SeatStatusLog records every status transition with the acting order, so
// inventory movements stay auditable.
type SeatStatusLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SeatID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"seat_id"`
	FromStatus string     `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus   string     `gorm:"type:varchar(20);not null" json:"to_status"`
	OrderID    *uuid.UUID `gorm:"type:uuid;index" json:"order_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName sets the table name for Zone
func (Zone) TableName() string {
	return "zones"
}

// TableName sets the table name for Seat
func (Seat) TableName() string {
	return "seats"
}

// TableName sets the table name for SeatStatusLog
func (SeatStatusLog) TableName() string {
	return "seat_status_logs"
}

// Helper methods for seat management
func (s *Seat) IsAvailable() bool {
	return s.Status == SeatAvailable
}

func (s *Seat) IsSold() bool {
	return s.Status == SeatSold
}

// Label returns the human form used on tickets, e.g. "FLOOR-A12"
func (s *Seat) Label(zoneName string) string {
	if zoneName == "" && s.Zone != nil {
		zoneName = s.Zone.Name
	}
	label := s.Row + strconv.Itoa(s.Number)
	if zoneName != "" {
		label = zoneName + "-" + label
	}
	return label
}

// SeatResponse for API responses; status folds in advisory redis holds
type SeatResponse struct {
	ID     string  `json:"id"`
	ZoneID string  `json:"zone_id"`
	Row    string  `json:"row"`
	Number int     `json:"number"`
	Price  float64 `json:"price"`
	Status string  `json:"status"` // AVAILABLE, HELD, RESERVED, SOLD, BLOCKED, UNAVAILABLE
}

// ToResponse converts a Seat, overlaying HELD when a redis hold exists
func (s *Seat) ToResponse(isHeld bool) SeatResponse {
	status := s.Status
	if isHeld && status == SeatAvailable {
		status = "HELD"
	}
	return SeatResponse{
		ID:     s.ID.String(),
		ZoneID: s.ZoneID.String(),
		Row:    s.Row,
		Number: s.Number,
		Price:  s.Price,
		Status: status,
	}
}

// SeatMapResponse is the seat-map payload for an event
type SeatMapResponse struct {
	EventID string         `json:"event_id"`
	Zones   []ZoneResponse `json:"zones"`
}

type ZoneResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	BasePrice float64        `json:"base_price"`
	Capacity  int            `json:"capacity"`
	Seats     []SeatResponse `json:"seats,omitempty"`
}

// Seat holding models (advisory pre-checkout holds)
type SeatHoldRequest struct {
	EventID   string   `json:"event_id" binding:"required,uuid"`
	SeatIDs   []string `json:"seat_ids" binding:"required,min=1,max=10"`
	SessionID string   `json:"session_id" binding:"required"`
}

type SeatHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	EventID   string    `json:"event_id"`
	SeatIDs   []string  `json:"seat_ids"`
	ExpiresAt time.Time `json:"expires_at"`
	TTL       int       `json:"ttl_seconds"`
}
