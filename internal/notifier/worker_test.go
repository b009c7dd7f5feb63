package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openresq/emergency_dispatch/internal/config"
)

func newTestWorker(cfg *config.Config) *Worker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewWorker(nil, logger, cfg)
}

func testEvent(pushURL string) (DispatchEvent, string) {
	event := DispatchEvent{
		AlertID:     uuid.New(),
		ResponderID: "fd-1",
		PushURL:     pushURL,
		Category:    "Fire & Rescue",
		Message:     "kitchen fire",
		Latitude:    34.05,
		Longitude:   -118.25,
		Timestamp:   time.Now(),
	}
	raw, _ := json.Marshal(event)
	return event, string(raw)
}

func TestDeliver_SignsPayload(t *testing.T) {
	const secret = "shared-secret"

	var gotSignature atomic.Value
	var gotBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature.Store(r.Header.Get("X-Dispatch-Signature"))
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(&config.Config{
		NotifySecret:     secret,
		NotifyTimeout:    time.Second,
		NotifyMaxRetries: 3,
		NotifyBaseDelay:  time.Millisecond,
	})

	event, raw := testEvent(server.URL)
	worker.deliver(context.Background(), event, raw)

	require.Equal(t, raw, gotBody.Load())

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(raw))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature.Load())
}

func TestDeliver_NoSecretSkipsSignature(t *testing.T) {
	var gotSignature atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature.Store(r.Header.Get("X-Dispatch-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(&config.Config{
		NotifyTimeout:    time.Second,
		NotifyMaxRetries: 3,
		NotifyBaseDelay:  time.Millisecond,
	})

	event, raw := testEvent(server.URL)
	worker.deliver(context.Background(), event, raw)

	assert.Equal(t, "", gotSignature.Load())
}

func TestDeliver_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := newTestWorker(&config.Config{
		NotifyTimeout:    time.Second,
		NotifyMaxRetries: 3,
		NotifyBaseDelay:  time.Millisecond,
	})

	event, raw := testEvent(server.URL)
	worker.deliver(context.Background(), event, raw)

	assert.Equal(t, int32(3), calls.Load())
}

func TestDeliver_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	worker := newTestWorker(&config.Config{
		NotifyTimeout:    time.Second,
		NotifyMaxRetries: 2,
		NotifyBaseDelay:  time.Millisecond,
	})

	event, raw := testEvent(server.URL)
	worker.deliver(context.Background(), event, raw)

	assert.Equal(t, int32(2), calls.Load())
}

func TestDeliver_SkipsEventWithoutPushURL(t *testing.T) {
	worker := newTestWorker(&config.Config{
		NotifyTimeout:    time.Second,
		NotifyMaxRetries: 3,
		NotifyBaseDelay:  time.Millisecond,
	})

	event, raw := testEvent("")
	// Must return without attempting any HTTP call.
	worker.deliver(context.Background(), event, raw)
}
