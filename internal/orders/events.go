package orders

import (
	"encoding/json"
	"time"
)

const EventOrderStatusChanged = "OrderStatusChanged"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type StatusChangedPayload struct {
	OrderID        string    `json:"order_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	Version        int64     `json:"version"`
	PaymentEventID string    `json:"payment_event_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}
