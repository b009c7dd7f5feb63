// Package bus provides topic-based publish/subscribe used to decouple the
// alert lifecycle engine from its consumers (realtime fan-out, notifications).
//
// Delivery is at-least-once to currently connected subscribers: this is a live
// fan-out bus, not a durable log. Publish is fire-and-forget; a subscriber
// nobody reaches is not a publisher error. Each subscriber receives its own
// copy of every matching message, in publish order (FIFO per subscriber).
package bus

import (
	"context"
	"strings"
)

// Event kinds. The full topic carries a geographic shard suffix,
// e.g. "alert.created.34:-119"; subscribers may use a trailing-* wildcard
// such as "alert.created.*" or "alert.*".
const (
	KindAlertCreated = "alert.created"
	KindAlertUpdated = "alert.updated"
	KindAlertTimeout = "alert.timeout"
	KindAlertDeleted = "alert.deleted"
)

// Topic builds the full topic name for an event kind and shard key.
func Topic(kind, shard string) string {
	return kind + "." + shard
}

// Handler consumes a single message. Called sequentially per subscription.
type Handler func(topic string, payload []byte)

// EventBus is the publish/subscribe contract.
type EventBus interface {
	// Publish sends payload (JSON-marshaled) to every current subscriber whose
	// pattern matches topic. Fire-and-forget: returns an error only when the
	// payload cannot be marshaled or the transport rejects the send outright.
	Publish(ctx context.Context, topic string, payload any) error
	// Subscribe registers a handler for every topic matching pattern. The
	// returned cancel func removes the subscription and releases its resources.
	Subscribe(pattern string, fn Handler) (cancel func(), err error)
}

// MatchTopic reports whether a topic matches a subscription pattern.
// Patterns are either exact topics or carry a trailing "*" matching any suffix.
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
