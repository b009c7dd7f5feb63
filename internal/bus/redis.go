package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisBus is the EventBus over Redis PUBLISH/PSUBSCRIBE, for deployments with
// more than one service instance: an alert created on one instance still
// reaches WebSocket clients connected to another. Redis pattern subscriptions
// natively support the trailing-* wildcard the bus contract requires.
type RedisBus struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisBus(client *redis.Client, logger *logrus.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		logger: logger,
	}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: failed to marshal payload for topic %s: %w", topic, err)
	}
	if err := b.client.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("bus: failed to publish to Redis topic %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(pattern string, fn Handler) (func(), error) {
	pubsub := b.client.PSubscribe(context.Background(), pattern)

	// Force the subscription onto the wire before returning so a publish that
	// follows Subscribe is not lost.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("bus: failed to subscribe to pattern %s: %w", pattern, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			fn(msg.Channel, []byte(msg.Payload))
		}
		b.logger.WithField("pattern", pattern).Debug("Redis bus subscription closed")
	}()

	cancel := func() {
		if err := pubsub.Close(); err != nil {
			b.logger.WithError(err).Warn("Failed to close Redis bus subscription")
		}
	}
	return cancel, nil
}
