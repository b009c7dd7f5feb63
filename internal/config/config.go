package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	// Redis
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Classifier gateway
	ClassifierURL     string
	ClassifierTimeout time.Duration
	DefaultCategory   string

	// Alert lifecycle. One canonical window: an alert times out 60s after
	// creation, a still-unaccepted alert escalates to the wider radius at 30s,
	// the sweep runs every 5s.
	AlertTimeout      time.Duration
	EscalationAfter   time.Duration
	SweepInterval     time.Duration
	InitialRadiusKm   float64
	EscalatedRadiusKm float64

	// Push notification delivery
	NotifySecret     string
	NotifyTimeout    time.Duration
	NotifyMaxRetries int
	NotifyBaseDelay  time.Duration

	// Realtime fan-out auth
	WSJWTSecret string

	// API keys for HTTP authentication
	APIKeys []string
}

// LoadConfig reads configuration from environment variables and an optional .env file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvAsInt("REDIS_DB", 0),
		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 3*time.Second),
		DefaultCategory:   getEnv("DEFAULT_CATEGORY", "Law & Order"),
		AlertTimeout:      getEnvAsDuration("ALERT_TIMEOUT", 60*time.Second),
		EscalationAfter:   getEnvAsDuration("ESCALATION_AFTER", 30*time.Second),
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 5*time.Second),
		InitialRadiusKm:   getEnvAsFloat("INITIAL_RADIUS_KM", 5),
		EscalatedRadiusKm: getEnvAsFloat("ESCALATED_RADIUS_KM", 10),
		NotifySecret:      os.Getenv("NOTIFY_SECRET"),
		NotifyTimeout:     getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second),
		NotifyMaxRetries:  getEnvAsInt("NOTIFY_MAX_RETRIES", 3),
		NotifyBaseDelay:   getEnvAsDuration("NOTIFY_BASE_DELAY", time.Second),
		WSJWTSecret:       os.Getenv("WS_JWT_SECRET"),
	}

	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		cfg.APIKeys = strings.Split(apiKeysStr, ",")
		for i, key := range cfg.APIKeys {
			cfg.APIKeys[i] = strings.TrimSpace(key)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// getEnv returns the environment variable value or a default.
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as int or a default.
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat returns the environment variable as float64 or a default.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration returns the environment variable as time.Duration or a default.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
