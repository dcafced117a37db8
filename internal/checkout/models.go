package checkout

import "time"

// CheckoutRequest opens a checkout for picked seats, quantity lines in
// GENERAL or VIP zones, or a mix of both. ExpectedTotal is the price the
// storefront displayed; checkout rejects it if the authoritative prices moved.
type CheckoutRequest struct {
	EventID       string        `json:"event_id" binding:"required,uuid"`
	SeatIDs       []string      `json:"seat_ids" binding:"omitempty,max=10"`
	GeneralLines  []GeneralLine `json:"general_lines" binding:"omitempty,max=5,dive"`
	ExpectedTotal float64       `json:"expected_total" binding:"required,gt=0"`
	Buyer         BuyerDetails  `json:"buyer" binding:"required"`
	HoldID        string        `json:"hold_id,omitempty"`
}

// GeneralLine asks for a number of spots in a standing or VIP zone
type GeneralLine struct {
	ZoneID   string `json:"zone_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=10"`
}

type BuyerDetails struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,min=2,max=100"`
	Phone string `json:"phone,omitempty" binding:"omitempty,min=7,max=20"`
}

// CheckoutResponse is the opened pending order
type CheckoutResponse struct {
	OrderID     string    `json:"order_id"`
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	SeatLabels  []string  `json:"seat_labels"`
	CreatedAt   time.Time `json:"created_at"`
}
