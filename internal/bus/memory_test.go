package bus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		match   bool
	}{
		{"alert.created.34:-119", "alert.created.34:-119", true},
		{"alert.created.34:-119", "alert.created.35:-119", false},
		{"alert.created.*", "alert.created.34:-119", true},
		{"alert.created.*", "alert.updated.34:-119", false},
		{"alert.*", "alert.created.34:-119", true},
		{"alert.*", "alert.timeout.0:0", true},
		{"alert.*", "responder.location", false},
		{"*", "anything.at.all", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" vs "+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.match, MatchTopic(tt.pattern, tt.topic))
		})
	}
}

// recorder collects delivered messages for assertions.
type recorder struct {
	mu     sync.Mutex
	topics []string
	bodies []string
}

func (r *recorder) handle(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.bodies = append(r.bodies, string(payload))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func TestMemoryBus_PublishReachesMatchingSubscriber(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	rec := &recorder{}
	cancel, err := b.Subscribe("alert.created.*", rec.handle)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), "alert.created.34:-119", map[string]string{"hello": "world"}))

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(rec.snapshot()[0]), &decoded))
	assert.Equal(t, "world", decoded["hello"])
}

func TestMemoryBus_NonMatchingTopicIsNotDelivered(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	rec := &recorder{}
	cancel, err := b.Subscribe("alert.updated.*", rec.handle)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), "alert.created.34:-119", "payload"))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestMemoryBus_PerSubscriberFIFO(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	rec := &recorder{}
	cancel, err := b.Subscribe("seq.*", rec.handle)
	require.NoError(t, err)
	defer cancel()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, b.Publish(context.Background(), "seq.numbers", i))
	}

	require.Eventually(t, func() bool { return rec.count() == n }, time.Second, 5*time.Millisecond)

	// Delivery order to a single subscriber matches publish order.
	for i, body := range rec.snapshot() {
		var got int
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.Equal(t, i, got)
	}
}

func TestMemoryBus_EachSubscriberGetsOwnCopy(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	first := &recorder{}
	second := &recorder{}
	cancel1, err := b.Subscribe("alert.*", first.handle)
	require.NoError(t, err)
	defer cancel1()
	cancel2, err := b.Subscribe("alert.created.*", second.handle)
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, b.Publish(context.Background(), "alert.created.0:0", "x"))

	require.Eventually(t, func() bool {
		return first.count() == 1 && second.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBus_CancelStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	rec := &recorder{}
	cancel, err := b.Subscribe("alert.*", rec.handle)
	require.NoError(t, err)

	cancel()

	require.NoError(t, b.Publish(context.Background(), "alert.created.0:0", "x"))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestMemoryBus_PublishAfterCloseFails(t *testing.T) {
	b := NewMemoryBus()
	b.Close()

	err := b.Publish(context.Background(), "alert.created.0:0", "x")
	assert.Error(t, err)
}
