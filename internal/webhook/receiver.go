package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-order-payments/internal/kafka"
	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/ariefcatur/go-order-payments/internal/redisx"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformed        = errors.New("malformed webhook payload")
)

// Outcome tells the transport how to answer the provider.
type Outcome int

const (
	Ack    Outcome = iota // 2xx, processed or safely ignored
	Reject                // 4xx, never valid
	Retry                 // 5xx, provider should redeliver
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Reject:
		return "reject"
	default:
		return "retry"
	}
}

// Applier is the synchronizer as seen by the receiver.
type Applier interface {
	Apply(ctx context.Context, ev orders.PaymentEvent) (orders.Order, error)
}

// Ledger answers whether an event id was already processed.
type Ledger interface {
	EventProcessed(ctx context.Context, eventID string) (bool, error)
}

type Receiver struct {
	secret    string
	tolerance time.Duration

	Sync      Applier
	Ledger    Ledger
	Dedup     *redisx.Dedup       // optional fast path
	Cache     *redisx.StatusCache // optional
	Publisher kafkax.Publisher    // optional
	Service   string
	Log       *zap.Logger
}

// NewReceiver returns a Receiver verifying deliveries with secret.
// A zero tolerance uses the provider library default.
func NewReceiver(secret string, tolerance time.Duration, sync Applier, ledger Ledger) (*Receiver, error) {
	if secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	return &Receiver{secret: secret, tolerance: tolerance, Sync: sync, Ledger: ledger, Log: zap.NewNop()}, nil
}

// Receive authenticates, deduplicates, normalizes and applies one delivery.
// The returned error explains any non-Ack outcome.
func (r *Receiver) Receive(ctx context.Context, raw []byte, signature string) (Outcome, error) {
	ev, err := webhook.ConstructEventWithOptions(raw, signature, r.secret, webhook.ConstructEventOptions{
		Tolerance:                r.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		r.Log.Warn("webhook signature verification failed", zap.Int("bytes", len(raw)), zap.Error(err))
		return Reject, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	log := r.Log.With(zap.String("event_id", ev.ID), zap.String("provider_type", string(ev.Type)))

	pe, known, err := Normalize(ev, raw)
	if !known {
		log.Info("webhook event ignored")
		return Ack, nil
	}
	if err != nil {
		log.Warn("malformed webhook event", zap.Error(err))
		return Reject, err
	}
	log = log.With(zap.String("order_id", pe.OrderID))

	if seen, err := r.Dedup.Seen(ctx, pe.ID); err != nil {
		log.Warn("dedup cache lookup failed", zap.Error(err))
	} else if seen {
		log.Info("duplicate webhook (cache)")
		return Ack, nil
	}
	if r.Ledger != nil {
		seen, err := r.Ledger.EventProcessed(ctx, pe.ID)
		if err != nil {
			log.Error("ledger lookup failed", zap.Error(err))
			return Retry, err
		}
		if seen {
			r.markSeen(ctx, log, pe.ID)
			log.Info("duplicate webhook (ledger)")
			return Ack, nil
		}
	}

	o, err := r.Sync.Apply(ctx, pe)
	switch {
	case err == nil:
		r.markSeen(ctx, log, pe.ID)
		r.afterApply(ctx, log, o, pe)
		return Ack, nil
	case errors.Is(err, orders.ErrDuplicateEvent), orders.IsRejection(err):
		r.markSeen(ctx, log, pe.ID)
		return Ack, nil
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrInvalidEvent):
		return Reject, err
	default:
		return Retry, err
	}
}

func (r *Receiver) markSeen(ctx context.Context, log *zap.Logger, eventID string) {
	if _, err := r.Dedup.Mark(ctx, eventID); err != nil {
		log.Warn("dedup cache write failed", zap.Error(err))
	}
}

// afterApply refreshes the status cache and announces the change. Failures
// here never turn an applied event into a retry.
func (r *Receiver) afterApply(ctx context.Context, log *zap.Logger, o orders.Order, pe orders.PaymentEvent) {
	if err := r.Cache.Put(ctx, o.ID, redisx.CachedStatus{Status: string(o.Status), Version: o.Version}); err != nil {
		log.Warn("status cache write failed", zap.Error(err))
	}
	if r.Publisher == nil {
		return
	}
	from, _ := orders.Source(pe.Type)
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		TraceID:       pe.ID,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.StatusChangedPayload{
			OrderID:        o.ID,
			From:           from,
			To:             o.Status,
			Version:        o.Version,
			PaymentEventID: pe.ID,
			OccurredAt:     pe.OccurredAt,
		}),
	}
	r.Publisher.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env), kafkax.EventHeaders(orders.EventOrderStatusChanged, 1)...)
}
