package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/openresq/emergency_dispatch/internal/bus"
	"github.com/openresq/emergency_dispatch/internal/classifier"
	"github.com/openresq/emergency_dispatch/internal/config"
	"github.com/openresq/emergency_dispatch/internal/geo"
	v1 "github.com/openresq/emergency_dispatch/internal/handler/http/v1"
	"github.com/openresq/emergency_dispatch/internal/notifier"
	"github.com/openresq/emergency_dispatch/internal/repository"
	"github.com/openresq/emergency_dispatch/internal/service"
	"github.com/openresq/emergency_dispatch/internal/ws"
	"github.com/openresq/emergency_dispatch/pkg/logger"
	"github.com/openresq/emergency_dispatch/pkg/postgres"
	redisclient "github.com/openresq/emergency_dispatch/pkg/redis"
	"github.com/sirupsen/logrus"
)

// @title Emergency Dispatch API
// @version 1.0
// @description Emergency alert dispatch backend: alert lifecycle, responder matching, realtime fan-out.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel)

	// Context tying the background workers to the process lifetime
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Event bus over Redis pattern pub/sub so events reach every instance
	eventBus := bus.NewRedisBus(redisClient, log)

	// Push notification pipeline
	dispatchPublisher := notifier.NewRedisPublisher(redisClient)
	notifyWorker := notifier.NewWorker(redisClient, log, cfg)
	notifyWorker.Start(ctx)

	// Repositories
	alertRepo := repository.NewAlertRepository(dbpool, redisClient)
	responderRepo := repository.NewResponderRepository(dbpool)

	// Collaborators
	classifierGateway := classifier.NewGateway(cfg, log)
	matcher := geo.NewMatcher(responderRepo, log)

	// Lifecycle engine and its sweep
	alertService := service.NewAlertService(alertRepo, responderRepo, classifierGateway, matcher, eventBus, dispatchPublisher, log, cfg)
	sweeper := service.NewSweeper(alertRepo, responderRepo, matcher, eventBus, dispatchPublisher, log, cfg)
	sweeper.Start(ctx)

	// Realtime fan-out
	hub, err := ws.NewHub(eventBus, alertService, log, cfg)
	if err != nil {
		log.Fatalf("Failed to start realtime hub: %v", err)
	}
	defer hub.Close()

	// Gin router
	handler := v1.NewHandler(alertService, hub, log, cfg)
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}
