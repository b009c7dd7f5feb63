package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	dispatchQueueKey = "notify:dispatch"
)

// DispatchEvent is one push notification to one responder about one alert.
type DispatchEvent struct {
	AlertID     uuid.UUID `json:"alert_id"`
	ResponderID string    `json:"responder_id"`
	PushURL     string    `json:"push_url"`
	Category    string    `json:"category"`
	Message     string    `json:"message,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher enqueues dispatch events for asynchronous delivery.
type Publisher interface {
	EnqueueDispatch(ctx context.Context, event DispatchEvent) error
}

// RedisPublisher pushes dispatch events onto a Redis list consumed by the
// delivery worker, so a slow or dead push endpoint never delays the engine.
type RedisPublisher struct {
	redisClient *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redisClient: client,
	}
}

// EnqueueDispatch appends the event to the delivery queue.
func (p *RedisPublisher) EnqueueDispatch(ctx context.Context, event DispatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch event: %w", err)
	}

	if err := p.redisClient.LPush(ctx, dispatchQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue dispatch event to Redis: %w", err)
	}
	return nil
}
