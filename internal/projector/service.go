package projector

import (
	"context"
	"encoding/json"

	kafkax "github.com/ariefcatur/go-order-payments/internal/kafka"
	"github.com/ariefcatur/go-order-payments/internal/orders"
	"github.com/ariefcatur/go-order-payments/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service keeps the Redis status cache in step with order.status.changed.
type Service struct {
	Cache *redisx.StatusCache
	Dedup *redisx.Dedup
	Log   *zap.Logger
}

// HandleStatusChanged is installed as the consumer handler.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log and commit past it
		s.Log.Warn("undecodable envelope", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	seen, err := s.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
	if err != nil {
		s.Log.Warn("undecodable status payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	// Put keeps whichever version is newer, so replays cannot regress the cache.
	if err := s.Cache.Put(ctx, p.OrderID, redisx.CachedStatus{Status: string(p.To), Version: p.Version}); err != nil {
		return err
	}
	if _, err := s.Dedup.Mark(ctx, env.EventID); err != nil {
		return err
	}
	s.Log.Info("status projected",
		zap.String("order_id", p.OrderID),
		zap.String("from", string(p.From)),
		zap.String("to", string(p.To)),
		zap.Int64("version", p.Version),
	)
	return nil
}
