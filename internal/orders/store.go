package orders

import (
	"context"
	"fmt"
	"time"
)

// DecideFunc computes the order that results from applying ev to cur.
// On rejection it returns cur unchanged, the rejection outcome and an error.
type DecideFunc func(cur Order, ev PaymentEvent) (Order, Outcome, error)

// Store persists orders and the payment event ledger.
//
// ApplyEvent runs decide while holding an exclusive lock on the order and
// records ev in the ledger in the same unit of work. A ledger hit returns
// ErrDuplicateEvent; a missing order returns ErrNotFound and records nothing.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id string) (Order, error)
	AttachExternalRef(ctx context.Context, id, ref string) (Order, error)
	ApplyEvent(ctx context.Context, ev PaymentEvent, decide DecideFunc) (Order, error)
	EventProcessed(ctx context.Context, eventID string) (bool, error)
}

// Decide is the transition rule shared by every Store: stale events and
// moves missing from the transition table are rejected, anything else
// advances status, ordering timestamp and version together.
func Decide(cur Order, ev PaymentEvent) (Order, Outcome, error) {
	if ev.OccurredAt.Before(cur.LastEventAt) {
		return cur, OutcomeStale, fmt.Errorf("%w: event %s at %s, order %s last applied %s",
			ErrStaleEvent, ev.ID, ev.OccurredAt.UTC().Format(time.RFC3339), cur.ID, cur.LastEventAt.UTC().Format(time.RFC3339))
	}
	next, ok := Next(cur.Status, ev.Type)
	if !ok {
		if Terminal(cur.Status) {
			return cur, OutcomeIllegal, fmt.Errorf("%w: order %s is %s and accepts no further events", ErrIllegalTransition, cur.ID, cur.Status)
		}
		return cur, OutcomeIllegal, fmt.Errorf("%w: %s -> %s on order %s", ErrIllegalTransition, cur.Status, ev.Type, cur.ID)
	}
	out := cur
	out.Status = next
	out.LastEventAt = ev.OccurredAt
	out.Version = cur.Version + 1
	return out, OutcomeApplied, nil
}
