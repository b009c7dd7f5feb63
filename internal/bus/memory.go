package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// subscriberBuffer bounds the per-subscriber queue. A subscriber that falls
// further behind loses its oldest messages instead of stalling publishers.
const subscriberBuffer = 256

type message struct {
	topic   string
	payload []byte
}

type subscriber struct {
	pattern string
	fn      Handler
	ch      chan message
	done    chan struct{}
}

// MemoryBus is the in-process EventBus used by a single-instance deployment
// and by tests. A dedicated goroutine per subscriber preserves per-subscriber
// FIFO while keeping Publish non-blocking.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[int]*subscriber),
	}
}

// Publish delivers payload to every matching subscriber. Never blocks on a
// slow subscriber.
func (b *MemoryBus) Publish(_ context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("bus: failed to marshal payload for topic %s: %w", topic, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus: publish on closed bus")
	}

	for _, sub := range b.subs {
		if !MatchTopic(sub.pattern, topic) {
			continue
		}
		msg := message{topic: topic, payload: data}
		select {
		case sub.ch <- msg:
		default:
			// Queue full: drop the oldest message to make room.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- msg:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers fn for every topic matching pattern.
func (b *MemoryBus) Subscribe(pattern string, fn Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus: subscribe on closed bus")
	}

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		pattern: pattern,
		fn:      fn,
		ch:      make(chan message, subscriberBuffer),
		done:    make(chan struct{}),
	}
	b.subs[id] = sub

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case msg := <-sub.ch:
				sub.fn(msg.topic, msg.payload)
			}
		}
	}()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.done)
		}
	}
	return cancel, nil
}

// Close tears down every subscription. Subsequent publishes fail.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.done)
	}
}
