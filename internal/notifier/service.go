// Package notifier consumes order and payment events, dedups them and keeps
// the read-side status cache warm. Delivery of actual customer
// notifications is out of scope; this is the hook point for it.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-commerce-core.git/internal/commerce"
	kafkax "github.com/ariefcatur/go-commerce-core.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-core.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Service struct {
	Redis *redis.Client
	Log   *zap.Logger
	Name  string
}

// HandleEvent is installed as the consumer handler for every order/payment
// topic.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env commerce.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event id so redeliveries are harmless
	dkey := fmt.Sprintf(redisx.KeyDedup, s.Name, env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case commerce.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[commerce.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, p.Status)
		s.Log.Info("order created",
			zap.String("order_id", p.OrderID),
			zap.String("user_id", p.UserID),
			zap.Int("total_cents", p.TotalCents))
	case commerce.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[commerce.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, commerce.StatusCancelled)
		s.Log.Info("order cancelled", zap.String("order_id", p.OrderID))
	case commerce.EventPaymentVerified:
		p, err := kafkax.UnwrapPayload[commerce.PaymentVerifiedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, commerce.StatusProcessing)
		s.Log.Info("payment verified",
			zap.String("order_id", p.OrderID),
			zap.String("reference", p.Reference),
			zap.String("source", p.Source))
	default:
		// unknown event types are ignored, not failed
	}
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, status commerce.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]string{"status": string(status)})
	_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
