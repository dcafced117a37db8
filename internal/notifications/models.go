package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order event types carried on the order-events topic
type OrderEventType string

const (
	OrderEventPaid      OrderEventType = "order.paid"
	OrderEventCancelled OrderEventType = "order.cancelled"
	OrderEventRefunded  OrderEventType = "order.refunded"
)

// OrderEvent is the message published when an order reaches a lifecycle
// milestone. Consumers turn these into buyer emails.
type OrderEvent struct {
	ID             uuid.UUID      `json:"id"`
	Type           OrderEventType `json:"type"`
	OrderID        uuid.UUID      `json:"order_id"`
	OrderReference string         `json:"order_reference"`
	EventID        uuid.UUID      `json:"event_id"`
	EventName      string         `json:"event_name"`

	BuyerEmail string `json:"buyer_email"`
	BuyerName  string `json:"buyer_name"`

	TotalAmount float64  `json:"total_amount"`
	Currency    string   `json:"currency"`
	SeatLabels  []string `json:"seat_labels,omitempty"`
	Reason      string   `json:"reason,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewOrderEvent builds an event with a fresh id and timestamp
func NewOrderEvent(eventType OrderEventType) *OrderEvent {
	return &OrderEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now(),
	}
}

func (e *OrderEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func OrderEventFromJSON(data []byte) (*OrderEvent, error) {
	var e OrderEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &e, nil
}

// PartitionKey keeps all events for one order on the same partition so
// consumers see them in order.
func (e *OrderEvent) PartitionKey() string {
	return e.OrderID.String()
}
