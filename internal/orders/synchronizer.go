package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Synchronizer is the only writer of order payment status.
type Synchronizer struct {
	Store Store
	Log   *zap.Logger
}

// Apply moves the order referenced by ev according to the transition table.
// It returns the persisted order on success. Rejections (ErrIllegalTransition,
// ErrStaleEvent), duplicates (ErrDuplicateEvent) and ErrNotFound leave the
// order untouched; any other error is transient and safe to retry.
func (s *Synchronizer) Apply(ctx context.Context, ev PaymentEvent) (Order, error) {
	if err := validateEvent(ev); err != nil {
		return Order{}, err
	}

	o, err := s.Store.ApplyEvent(ctx, ev, Decide)
	log := s.logger().With(
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.String("order_id", ev.OrderID),
	)
	switch {
	case err == nil:
		log.Info("order status applied", zap.String("status", string(o.Status)), zap.Int64("version", o.Version))
	case errors.Is(err, ErrDuplicateEvent):
		log.Info("duplicate payment event ignored")
	case IsRejection(err):
		log.Warn("payment event rejected", zap.String("status", string(o.Status)), zap.Error(err))
	case errors.Is(err, ErrNotFound):
		log.Warn("payment event for unknown order", zap.Error(err))
	default:
		log.Error("apply payment event", zap.Error(err))
	}
	return o, err
}

func (s *Synchronizer) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func validateEvent(ev PaymentEvent) error {
	switch {
	case ev.ID == "":
		return fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case ev.OrderID == "":
		return fmt.Errorf("%w: missing order id", ErrInvalidEvent)
	case !ev.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	case ev.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}
