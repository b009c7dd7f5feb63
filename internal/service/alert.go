package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openresq/emergency_dispatch/internal/bus"
	"github.com/openresq/emergency_dispatch/internal/config"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/notifier"
	"github.com/sirupsen/logrus"
)

// enrichmentBudget bounds the whole background enrichment pass. The alert is
// already durable when enrichment starts, so on expiry it simply keeps the
// default category and empty responder set and stays reachable by the sweep.
const enrichmentBudget = 15 * time.Second

// CreateAlertInput carries the citizen-facing creation request.
type CreateAlertInput struct {
	ReporterID string
	Message    string
	AudioRef   string
	Latitude   float64
	Longitude  float64
}

// AlertService is the contract for the alert lifecycle engine.
type AlertService interface {
	CreateAlert(ctx context.Context, input CreateAlertInput) (*models.Alert, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, page, pageSize int) ([]*models.Alert, error)
	ActiveAlerts(ctx context.Context, shard string) ([]*models.Alert, error)
	AcceptAlert(ctx context.Context, id uuid.UUID, responderID string) (*models.Alert, error)
	ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	CancelAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	DeleteAlert(ctx context.Context, id uuid.UUID) error
	RegisterResponder(ctx context.Context, responder *models.Responder) error
	UpdateResponderLocation(ctx context.Context, id string, lat, lng float64) error
}

type alertService struct {
	repo       AlertRepository
	responders ResponderRepository
	classifier Classifier
	matcher    ResponderMatcher
	bus        bus.EventBus
	notifier   DispatchNotifier
	logger     *logrus.Logger
	cfg        *config.Config

	// spawn runs the background enrichment task. Indirection exists so tests
	// can run enrichment synchronously.
	spawn func(fn func())
}

func NewAlertService(
	repo AlertRepository,
	responders ResponderRepository,
	classifier Classifier,
	matcher ResponderMatcher,
	eventBus bus.EventBus,
	dispatchNotifier DispatchNotifier,
	logger *logrus.Logger,
	cfg *config.Config,
) AlertService {
	return &alertService{
		repo:       repo,
		responders: responders,
		classifier: classifier,
		matcher:    matcher,
		bus:        eventBus,
		notifier:   dispatchNotifier,
		logger:     logger,
		cfg:        cfg,
		spawn:      func(fn func()) { go fn() },
	}
}

// CreateAlert persists the preliminary record and returns it immediately.
// Classification and responder matching run in the background so a slow or
// dead collaborator never delays the citizen-facing response.
func (s *alertService) CreateAlert(ctx context.Context, input CreateAlertInput) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "alert",
		"method":      "CreateAlert",
		"reporter_id": input.ReporterID,
	})
	log.Info("Attempting to create a new alert")

	if err := validateCreateInput(input); err != nil {
		log.WithError(err).Warn("Alert creation input rejected")
		return nil, err
	}

	alert := &models.Alert{
		ReporterID:         input.ReporterID,
		Message:            input.Message,
		AudioRef:           input.AudioRef,
		Latitude:           input.Latitude,
		Longitude:          input.Longitude,
		Category:           s.cfg.DefaultCategory,
		Status:             models.StatusNew,
		RadiusKm:           s.cfg.InitialRadiusKm,
		Deadline:           time.Now().Add(s.cfg.AlertTimeout),
		TargetedResponders: []string{},
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		log.WithError(err).Error("Failed to create alert in repository")
		return nil, fmt.Errorf("service: could not create alert: %w", err)
	}

	// Background enrichment: detached from the request context, with its own
	// error boundary. Its failure must never reach the already-sent response.
	preliminary := *alert
	s.spawn(func() {
		enrichCtx, cancel := context.WithTimeout(context.Background(), enrichmentBudget)
		defer cancel()
		s.enrich(enrichCtx, &preliminary)
	})

	log.WithField("alert_id", alert.ID).Info("Alert created successfully")
	return alert, nil
}

func validateCreateInput(input CreateAlertInput) error {
	if input.ReporterID == "" {
		return fmt.Errorf("reporter_id is required: %w", models.ErrValidation)
	}
	if input.Latitude < -90 || input.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %w", models.ErrValidation)
	}
	if input.Longitude < -180 || input.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %w", models.ErrValidation)
	}
	return nil
}

// enrich classifies the alert, runs the initial responder matching pass,
// persists both as a single update and publishes the one `created` event.
// Every collaborator failure degrades; a store failure leaves the alert valid
// in `new` with default category, still reachable by the timeout sweep.
func (s *alertService) enrich(ctx context.Context, alert *models.Alert) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "enrich",
		"alert_id": alert.ID,
	})

	category := s.classifier.Classify(ctx, alert.Message, alert.AudioRef)

	targeted, err := s.matcher.FindNearby(ctx, alert.Latitude, alert.Longitude, category, alert.RadiusKm)
	if err != nil {
		log.WithError(err).Warn("Responder matching failed, proceeding with empty responder set")
		targeted = []string{}
	}

	updated, err := s.repo.UpdateEnrichment(ctx, alert.ID, category, alert.RadiusKm, targeted)
	if err != nil {
		// Includes the administrative-delete race: the preliminary record, if
		// still present, remains valid and sweepable.
		log.WithError(err).Error("Failed to persist alert enrichment")
		return
	}

	s.publishEvent(ctx, models.EventCreated, updated)
	s.notifyResponders(ctx, updated, updated.TargetedResponders)

	log.WithFields(logrus.Fields{
		"category": category,
		"targeted": len(targeted),
	}).Info("Alert enrichment completed")
}

// publishEvent pushes one event to the bus. Fire-and-forget for the engine.
func (s *alertService) publishEvent(ctx context.Context, kind string, alert *models.Alert) {
	event := models.AlertEvent{Kind: kind, Alert: alert}
	topic := bus.Topic("alert."+kind, alert.ShardKey())
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"alert_id": alert.ID,
			"topic":    topic,
		}).Error("Failed to publish alert event")
	}
}

// notifyResponders enqueues a push notification for every targeted responder
// that has a delivery address. Queue failures are logged, never propagated.
func (s *alertService) notifyResponders(ctx context.Context, alert *models.Alert, targeted []string) {
	if len(targeted) == 0 {
		return
	}
	log := s.logger.WithField("alert_id", alert.ID)

	responders, err := s.responders.GetByIDs(ctx, targeted)
	if err != nil {
		log.WithError(err).Error("Failed to load targeted responders for notification")
		return
	}

	for _, responder := range responders {
		if responder.PushURL == "" {
			continue
		}
		if err := s.notifier.EnqueueDispatch(ctx, dispatchEventFor(alert, responder)); err != nil {
			log.WithError(err).WithField("responder_id", responder.ID).Error("Failed to enqueue dispatch notification")
		}
	}
}

func dispatchEventFor(alert *models.Alert, responder *models.Responder) notifier.DispatchEvent {
	return notifier.DispatchEvent{
		AlertID:     alert.ID,
		ResponderID: responder.ID,
		PushURL:     responder.PushURL,
		Category:    alert.Category,
		Message:     alert.Message,
		Latitude:    alert.Latitude,
		Longitude:   alert.Longitude,
		Timestamp:   time.Now(),
	}
}

// GetAlert returns an alert by id, trying the cache first.
func (s *alertService) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "GetAlert",
		"alert_id": id,
	})

	cached, err := s.repo.GetAlertFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Alert cache lookup failed, falling back to store")
	}
	if cached != nil {
		return cached, nil
	}

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.WithError(err).Error("Failed to get alert from repository")
		}
		return nil, fmt.Errorf("service: could not get alert: %w", err)
	}

	if err := s.repo.SetAlertCache(ctx, alert); err != nil {
		log.WithError(err).Warn("Failed to cache alert")
	}
	return alert, nil
}

// ListAlerts returns alerts with pagination.
func (s *alertService) ListAlerts(ctx context.Context, page, pageSize int) ([]*models.Alert, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	alerts, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list alerts from repository")
		return nil, fmt.Errorf("service: could not list alerts: %w", err)
	}
	return alerts, nil
}

// ActiveAlerts returns non-terminal alerts for a shard; the fan-out uses it
// for subscription snapshots.
func (s *alertService) ActiveAlerts(ctx context.Context, shard string) ([]*models.Alert, error) {
	alerts, err := s.repo.ListActive(ctx, shard)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list active alerts from repository")
		return nil, fmt.Errorf("service: could not list active alerts: %w", err)
	}
	return alerts, nil
}

// AcceptAlert assigns the alert to a responder. Only a `new` alert can be
// accepted; a concurrent sweep or another responder winning the race leaves
// this call with ErrConflict and the record untouched.
func (s *alertService) AcceptAlert(ctx context.Context, id uuid.UUID, responderID string) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "alert",
		"method":       "AcceptAlert",
		"alert_id":     id,
		"responder_id": responderID,
	})
	log.Info("Attempting to accept alert")

	if responderID == "" {
		return nil, fmt.Errorf("responder_id is required: %w", models.ErrValidation)
	}

	alert, err := s.repo.Transition(ctx, id, models.SourcesOf(models.StatusAccepted), models.StatusAccepted, &responderID)
	if err != nil {
		log.WithError(err).Warn("Accept transition rejected")
		return nil, fmt.Errorf("service: could not accept alert: %w", err)
	}

	s.publishEvent(ctx, models.EventUpdated, alert)
	log.Info("Alert accepted successfully")
	return alert, nil
}

// ResolveAlert closes out an accepted alert.
func (s *alertService) ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "ResolveAlert",
		"alert_id": id,
	})
	log.Info("Attempting to resolve alert")

	alert, err := s.repo.Transition(ctx, id, models.SourcesOf(models.StatusResolved), models.StatusResolved, nil)
	if err != nil {
		log.WithError(err).Warn("Resolve transition rejected")
		return nil, fmt.Errorf("service: could not resolve alert: %w", err)
	}

	s.publishEvent(ctx, models.EventUpdated, alert)
	log.Info("Alert resolved successfully")
	return alert, nil
}

// CancelAlert lets the citizen withdraw a `new` or `accepted` alert.
func (s *alertService) CancelAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "CancelAlert",
		"alert_id": id,
	})
	log.Info("Attempting to cancel alert")

	alert, err := s.repo.Transition(ctx, id, models.SourcesOf(models.StatusCanceled), models.StatusCanceled, nil)
	if err != nil {
		log.WithError(err).Warn("Cancel transition rejected")
		return nil, fmt.Errorf("service: could not cancel alert: %w", err)
	}

	s.publishEvent(ctx, models.EventUpdated, alert)
	log.Info("Alert canceled successfully")
	return alert, nil
}

// DeleteAlert hard-removes an alert regardless of status. Idempotent: deleting
// an absent alert is a silent success, and the deletion notice is published
// only when a row was actually removed.
func (s *alertService) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "alert",
		"method":   "DeleteAlert",
		"alert_id": id,
	})
	log.Info("Attempting to delete alert")

	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Info("Alert already absent, delete is a no-op")
			return nil
		}
		return fmt.Errorf("service: could not delete alert: %w", err)
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to delete alert in repository")
		return fmt.Errorf("service: could not delete alert: %w", err)
	}
	if !removed {
		// Lost a race with another delete; still a success.
		return nil
	}

	s.publishEvent(ctx, models.EventDeleted, alert)
	log.Info("Alert deleted successfully")
	return nil
}

// RegisterResponder registers a unit, idempotently.
func (s *alertService) RegisterResponder(ctx context.Context, responder *models.Responder) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":      "alert",
		"method":       "RegisterResponder",
		"responder_id": responder.ID,
	})

	if responder.ID == "" {
		return fmt.Errorf("responder id is required: %w", models.ErrValidation)
	}
	if responder.Department != models.DepartmentPolice && responder.Department != models.DepartmentFire {
		return fmt.Errorf("unknown department %q: %w", responder.Department, models.ErrValidation)
	}

	if err := s.responders.Upsert(ctx, responder); err != nil {
		log.WithError(err).Error("Failed to upsert responder")
		return fmt.Errorf("service: could not register responder: %w", err)
	}

	log.Info("Responder registered successfully")
	return nil
}

// UpdateResponderLocation records a unit's position report.
func (s *alertService) UpdateResponderLocation(ctx context.Context, id string, lat, lng float64) error {
	if id == "" {
		return fmt.Errorf("responder id is required: %w", models.ErrValidation)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("coordinates out of range: %w", models.ErrValidation)
	}

	if err := s.responders.UpdateLocation(ctx, id, lat, lng); err != nil {
		s.logger.WithError(err).WithField("responder_id", id).Warn("Failed to update responder location")
		return fmt.Errorf("service: could not update responder location: %w", err)
	}
	return nil
}
