package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openresq/emergency_dispatch/internal/config"
)

func newTestGateway(url string) *Gateway {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGateway(&config.Config{
		ClassifierURL:     url,
		ClassifierTimeout: time.Second,
		DefaultCategory:   "Law & Order",
	}, logger)
}

func TestClassify_ReturnsServiceCategory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "my house is on fire", req["message"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"category": "Fire & Rescue"})
	}))
	defer server.Close()

	g := newTestGateway(server.URL)
	assert.Equal(t, "Fire & Rescue", g.Classify(context.Background(), "my house is on fire", ""))
}

func TestClassify_UnreachableServiceFallsBack(t *testing.T) {
	g := newTestGateway("http://127.0.0.1:1/classify")
	assert.Equal(t, "Law & Order", g.Classify(context.Background(), "help", ""))
}

func TestClassify_NonSuccessStatusFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	g := newTestGateway(server.URL)
	assert.Equal(t, "Law & Order", g.Classify(context.Background(), "help", ""))
}

func TestClassify_EmptyCategoryFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"category": ""})
	}))
	defer server.Close()

	g := newTestGateway(server.URL)
	assert.Equal(t, "Law & Order", g.Classify(context.Background(), "help", ""))
}

func TestClassify_MalformedBodyFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	g := newTestGateway(server.URL)
	assert.Equal(t, "Law & Order", g.Classify(context.Background(), "help", ""))
}

func TestClassify_NoSignalSkipsTheCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer server.Close()

	g := newTestGateway(server.URL)
	assert.Equal(t, "Law & Order", g.Classify(context.Background(), "", ""))
	assert.False(t, called)
}

func TestClassify_NoConfiguredURLSkipsTheCall(t *testing.T) {
	g := newTestGateway("")
	assert.Equal(t, "Law & Order", g.Classify(context.Background(), "help", ""))
}

func TestClassify_AudioOnlySignalIsSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "s3://bucket/scream.ogg", req["audio_ref"])
		assert.Empty(t, req["message"])

		_ = json.NewEncoder(w).Encode(map[string]string{"category": "Medical Help"})
	}))
	defer server.Close()

	g := newTestGateway(server.URL)
	assert.Equal(t, "Medical Help", g.Classify(context.Background(), "", "s3://bucket/scream.ogg"))
}
