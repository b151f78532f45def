package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

// TopicOrderEvents carries order lifecycle events for connected clients.
const TopicOrderEvents = "orders.events"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload pushed to the relay. Delivery is best-effort and
// at-most-once: a missed event is not persisted or retried.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

type redisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(addr, password string) Publisher {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return &redisPublisher{client: client}
}

func (p *redisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("notify: failed to publish to %s: %w", topic, err)
	}
	return nil
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that discards every event. Used when no
// relay is configured.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, string, any) error {
	return nil
}
