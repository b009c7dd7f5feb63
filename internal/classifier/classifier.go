// Package classifier wraps the external AI classification service. Any
// failure (unreachable service, timeout, bad status, malformed body, empty
// result) degrades to the configured default category: classification must
// never block or fail alert creation.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/openresq/emergency_dispatch/internal/config"
	"github.com/sirupsen/logrus"
)

type classifyRequest struct {
	Message  string `json:"message,omitempty"`
	AudioRef string `json:"audio_ref,omitempty"`
}

type classifyResponse struct {
	Category string `json:"category"`
}

// Gateway calls the classification service over HTTP with a bounded timeout.
type Gateway struct {
	cfg        *config.Config
	logger     *logrus.Logger
	httpClient *http.Client
}

func NewGateway(cfg *config.Config, logger *logrus.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.ClassifierTimeout,
		},
	}
}

// Classify returns the emergency category for the given signals, or the
// default category when the collaborator cannot produce one.
func (g *Gateway) Classify(ctx context.Context, message, audioRef string) string {
	log := g.logger.WithField("component", "classifier")

	if g.cfg.ClassifierURL == "" || (message == "" && audioRef == "") {
		// Nothing to classify or nowhere to ask: default category.
		return g.cfg.DefaultCategory
	}

	category, err := g.call(ctx, message, audioRef)
	if err != nil {
		log.WithError(err).Warn("Classification failed, falling back to default category")
		return g.cfg.DefaultCategory
	}
	if category == "" {
		log.Warn("Classifier returned an empty category, falling back to default")
		return g.cfg.DefaultCategory
	}
	return category
}

func (g *Gateway) call(ctx context.Context, message, audioRef string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ClassifierTimeout)
	defer cancel()

	body, err := json.Marshal(classifyRequest{Message: message, AudioRef: audioRef})
	if err != nil {
		return "", fmt.Errorf("failed to marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.cfg.ClassifierURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("classifier responded with status %d", resp.StatusCode)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode classifier response: %w", err)
	}
	return out.Category, nil
}
