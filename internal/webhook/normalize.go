package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/stripe/stripe-go/v80"
)

// stripeTypes maps provider event types onto normalized payment events.
// Types not listed are acknowledged and dropped.
var stripeTypes = map[string]orders.EventType{
	"checkout.session.completed":               orders.EventAuthorized,
	"payment_intent.amount_capturable_updated": orders.EventAuthorized,
	"payment_intent.succeeded":                 orders.EventCaptured,
	"payment_intent.payment_failed":            orders.EventFailed,
	"payment_intent.canceled":                  orders.EventFailed,
	"charge.refunded":                          orders.EventRefunded,
}

// object is the slice of any Stripe data object the receiver needs.
type object struct {
	ID                string            `json:"id"`
	Metadata          map[string]string `json:"metadata"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
}

const checkoutCompleted = "checkout.session.completed"

// Normalize converts a verified Stripe event. ok is false for event types
// the service does not track and for completed checkout sessions whose
// payment is still pending (delayed methods); those authorize later through
// payment_intent events.
func Normalize(ev stripe.Event, raw []byte) (pe orders.PaymentEvent, ok bool, err error) {
	t, known := stripeTypes[string(ev.Type)]
	if !known {
		return orders.PaymentEvent{}, false, nil
	}
	if ev.ID == "" {
		return orders.PaymentEvent{}, true, fmt.Errorf("%w: missing event id", ErrMalformed)
	}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return orders.PaymentEvent{}, true, fmt.Errorf("%w: event %s has no data object", ErrMalformed, ev.ID)
	}
	var obj object
	if err := json.Unmarshal(ev.Data.Raw, &obj); err != nil {
		return orders.PaymentEvent{}, true, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type == checkoutCompleted && obj.PaymentStatus != "paid" {
		return orders.PaymentEvent{}, false, nil
	}
	orderID := obj.Metadata["order_id"]
	if orderID == "" {
		orderID = obj.ClientReferenceID
	}
	if orderID == "" {
		return orders.PaymentEvent{}, true, fmt.Errorf("%w: event %s (%s) carries no order id", ErrMalformed, ev.ID, obj.ID)
	}
	return orders.PaymentEvent{
		ID:            ev.ID,
		Type:          t,
		OrderID:       orderID,
		OccurredAt:    time.Unix(ev.Created, 0).UTC(),
		PayloadDigest: Digest(raw),
	}, true, nil
}

// Digest is the hex SHA-256 of the raw delivery body, kept for audit.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
