package statuscache

import (
	"context"
	"encoding/json"

	kafkax "github.com/ariefcatur/agri-marketplace/internal/kafka"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
	"github.com/ariefcatur/agri-marketplace/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Cache interface {
	Set(ctx context.Context, st redisx.OrderStatus) error
}

type Dedup interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Service projects order events into the Redis status cache.
type Service struct {
	Cache Cache
	Dedup Dedup
	Log   *zap.Logger
}

// HandleEvent is installed as the consumer handler.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("skipping undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	st, ok, err := toStatus(env)
	if err != nil {
		s.Log.Warn("skipping bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}
	if err := s.Cache.Set(ctx, st); err != nil {
		_ = s.Dedup.Forget(ctx, env.EventID)
		return err
	}
	s.Log.Debug("status cached",
		zap.String("event_type", env.EventType),
		zap.Int64("order_id", st.OrderID),
		zap.String("status", st.Status))
	return nil
}

func toStatus(env orders.Envelope) (redisx.OrderStatus, bool, error) {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return redisx.OrderStatus{}, false, err
		}
		return redisx.OrderStatus{OrderID: p.OrderID, BuyerID: p.BuyerID, Status: string(p.Status), UpdatedAt: p.UpdatedAt}, true, nil
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return redisx.OrderStatus{}, false, err
		}
		return redisx.OrderStatus{OrderID: p.OrderID, BuyerID: p.BuyerID, Status: string(p.Status), UpdatedAt: p.UpdatedAt}, true, nil
	}
	return redisx.OrderStatus{}, false, nil
}
