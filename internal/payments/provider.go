package payments

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IntentRequest asks the gateway to open a payment intent. Amounts cross the
// wire as exact decimals; float rounding must never reach the provider.
type IntentRequest struct {
	PaymentID      string          `json:"payment_id"`
	OrderReference string          `json:"order_reference"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	ReturnURL      string          `json:"return_url"`
	ExpiresIn      int             `json:"expires_in_seconds"`
}

// IntentResponse is the gateway's answer to a created intent
type IntentResponse struct {
	ProviderPaymentID string    `json:"provider_payment_id"`
	RedirectURL       string    `json:"redirect_url"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// CallbackPayload is the parsed body of a provider webhook
type CallbackPayload struct {
	ProviderPaymentID string          `json:"payment_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Reason            string          `json:"reason,omitempty"`
}

// ProviderClient is the boundary to one payment gateway. Implementations own
// transport, authentication, and signature schemes.
type ProviderClient interface {
	Name() string
	CreateIntent(ctx context.Context, req *IntentRequest) (*IntentResponse, error)
	VerifySignature(body []byte, signature string) bool
}
