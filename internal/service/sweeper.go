package service

import (
	"context"
	"time"

	"github.com/openresq/emergency_dispatch/internal/bus"
	"github.com/openresq/emergency_dispatch/internal/config"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically expires stale `new` alerts and escalates the search
// radius for alerts nobody has accepted yet. There is no per-alert timer: the
// conditional ScanAndTimeout update is the scheduler, so an alert that was
// accepted or canceled can never be flipped, no matter how the sweep races it.
type Sweeper struct {
	repo       AlertRepository
	responders ResponderRepository
	matcher    ResponderMatcher
	bus        bus.EventBus
	notifier   DispatchNotifier
	logger     *logrus.Logger
	cfg        *config.Config
}

func NewSweeper(
	repo AlertRepository,
	responders ResponderRepository,
	matcher ResponderMatcher,
	eventBus bus.EventBus,
	dispatchNotifier DispatchNotifier,
	logger *logrus.Logger,
	cfg *config.Config,
) *Sweeper {
	return &Sweeper{
		repo:       repo,
		responders: responders,
		matcher:    matcher,
		bus:        eventBus,
		notifier:   dispatchNotifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// Start launches the sweep loop. It stops when ctx is canceled.
func (w *Sweeper) Start(ctx context.Context) {
	w.logger.WithField("interval", w.cfg.SweepInterval.String()).Info("Starting alert sweeper...")
	go func() {
		ticker := time.NewTicker(w.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping alert sweeper.")
				return
			case <-ticker.C:
				w.sweepOnce(ctx, time.Now())
				w.escalateOnce(ctx, time.Now())
			}
		}
	}()
}

// sweepOnce transitions every expired `new` alert to `timed_out` and publishes
// one timeout event per flipped alert.
func (w *Sweeper) sweepOnce(ctx context.Context, now time.Time) {
	log := w.logger.WithField("component", "sweeper")

	expired, err := w.repo.ScanAndTimeout(ctx, now)
	if err != nil {
		log.WithError(err).Error("Timeout scan failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	for _, alert := range expired {
		event := models.AlertEvent{Kind: models.EventTimeout, Alert: alert}
		topic := bus.Topic(bus.KindAlertTimeout, alert.ShardKey())
		if err := w.bus.Publish(ctx, topic, event); err != nil {
			log.WithError(err).WithField("alert_id", alert.ID).Error("Failed to publish timeout event")
		}
	}
	log.WithField("count", len(expired)).Info("Expired alerts timed out")
}

// escalateOnce widens the search radius for `new` alerts past the escalation
// threshold, re-runs the matcher and replaces the targeted set at the new
// radius (full replace, not union). Status is untouched; after escalation the
// alert stays at the wider radius and is skipped by later passes.
func (w *Sweeper) escalateOnce(ctx context.Context, now time.Time) {
	log := w.logger.WithField("component", "sweeper")
	cutoff := now.Add(-w.cfg.EscalationAfter)

	stale, err := w.repo.ListEscalatable(ctx, cutoff, w.cfg.EscalatedRadiusKm)
	if err != nil {
		log.WithError(err).Error("Escalation scan failed")
		return
	}

	for _, alert := range stale {
		alog := log.WithField("alert_id", alert.ID)

		targeted, err := w.matcher.FindNearby(ctx, alert.Latitude, alert.Longitude, alert.Category, w.cfg.EscalatedRadiusKm)
		if err != nil {
			alog.WithError(err).Warn("Escalation matching failed, keeping current responder set")
			continue
		}

		updated, err := w.repo.UpdateEnrichment(ctx, alert.ID, alert.Category, w.cfg.EscalatedRadiusKm, targeted)
		if err != nil {
			alog.WithError(err).Error("Failed to persist escalated responder set")
			continue
		}

		event := models.AlertEvent{Kind: models.EventUpdated, Alert: updated}
		topic := bus.Topic(bus.KindAlertUpdated, updated.ShardKey())
		if err := w.bus.Publish(ctx, topic, event); err != nil {
			alog.WithError(err).Error("Failed to publish escalation event")
		}

		w.notifyNewlyTargeted(ctx, alert, updated)
		alog.WithFields(logrus.Fields{
			"radius_km": w.cfg.EscalatedRadiusKm,
			"targeted":  len(targeted),
		}).Info("Alert escalated to wider search radius")
	}
}

// notifyNewlyTargeted enqueues notifications only for responders the wider
// radius added; units already notified at the initial radius are skipped.
func (w *Sweeper) notifyNewlyTargeted(ctx context.Context, before, after *models.Alert) {
	fresh := make([]string, 0, len(after.TargetedResponders))
	for _, id := range after.TargetedResponders {
		if !before.TargetedTo(id) {
			fresh = append(fresh, id)
		}
	}
	if len(fresh) == 0 {
		return
	}

	responders, err := w.responders.GetByIDs(ctx, fresh)
	if err != nil {
		w.logger.WithError(err).WithField("alert_id", after.ID).Error("Failed to load escalation responders for notification")
		return
	}
	for _, responder := range responders {
		if responder.PushURL == "" {
			continue
		}
		event := dispatchEventFor(after, responder)
		if err := w.notifier.EnqueueDispatch(ctx, event); err != nil {
			w.logger.WithError(err).WithFields(logrus.Fields{
				"alert_id":     after.ID,
				"responder_id": responder.ID,
			}).Error("Failed to enqueue escalation notification")
		}
	}
}
