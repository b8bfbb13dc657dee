package orders

import (
	"fmt"
	"time"
)

type Order struct {
	ID          string    `json:"id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Status      Status    `json:"status"`
	ExternalRef string    `json:"external_ref,omitempty"` // set once, by checkout
	LastEventAt time.Time `json:"last_event_at"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the fields a new order must carry. Currency is a
// lower-case ISO 4217 code.
func (o Order) Validate() error {
	switch {
	case o.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidOrder)
	case o.AmountMinor <= 0:
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidOrder, o.AmountMinor)
	case !isCurrency(o.Currency):
		return fmt.Errorf("%w: currency %q", ErrInvalidOrder, o.Currency)
	case !o.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidOrder, o.Status)
	}
	return nil
}

func isCurrency(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// PaymentEvent is a provider notification after signature check and normalization.
type PaymentEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	OrderID       string    `json:"order_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	PayloadDigest string    `json:"payload_digest"`
}

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIllegal Outcome = "rejected_illegal"
	OutcomeStale   Outcome = "rejected_stale"
)

// LedgerEntry is the append-only record of a processed payment event.
type LedgerEntry struct {
	EventID       string
	OrderID       string
	EventType     EventType
	OccurredAt    time.Time
	PayloadDigest string
	Outcome       Outcome
	ProcessedAt   time.Time
}
