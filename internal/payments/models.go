package payments

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses. At most one COMPLETED payment ever exists per order;
// refunds are separate REFUNDED rows with negative amounts so the audit trail
// keeps every money movement.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
	StatusRefunded   = "REFUNDED"
)

// Settlement outcomes reported to the checkout orchestrator
const (
	OutcomeCompleted = "COMPLETED"
	OutcomeFailed    = "FAILED"
	OutcomeCancelled = "CANCELLED"
)

// Payment is one attempt to move money for an order
type Payment struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`

	Provider string `gorm:"type:varchar(50);not null" json:"provider"`

	// ProviderPaymentID is the gateway's id for this intent. It is the
	// idempotency key for webhook reconciliation.
	ProviderPaymentID *string `gorm:"type:varchar(100);uniqueIndex" json:"provider_payment_id,omitempty"`

	Status      string  `gorm:"type:varchar(20);check:status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED', 'CANCELLED', 'REFUNDED');default:'PENDING'" json:"status"`
	Amount      float64 `gorm:"not null" json:"amount"`
	Currency    string  `gorm:"type:varchar(3);not null" json:"currency"`
	FailureCode string  `gorm:"type:varchar(50)" json:"failure_code,omitempty"`
	RedirectURL string  `gorm:"type:text" json:"redirect_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// IsTerminal reports whether the payment can never change state again
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// SettlementEvent is the reconciled result of a provider callback. Replayed
// marks a duplicate delivery the orchestrator must treat as a no-op.
type SettlementEvent struct {
	OrderID   uuid.UUID
	PaymentID uuid.UUID
	Outcome   string
	Replayed  bool
}

// InitiateResponse is what checkout returns to the storefront so the buyer
// can be sent to the gateway's hosted page
type InitiateResponse struct {
	PaymentID   string    `json:"payment_id"`
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
