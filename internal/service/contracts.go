package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/notifier"
)

//go:generate mockgen -source=contracts.go -destination=mocks/mock_contracts.go -package=mocks

// AlertRepository is the contract for the alert store. The lifecycle engine is
// the only writer; all status changes go through the conditional Transition so
// concurrent writers (request handlers vs. the sweep) get exactly one winner.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	// UpdateEnrichment writes category, radius and the targeted set without
	// touching status, so enrichment racing a transition never clobbers it.
	UpdateEnrichment(ctx context.Context, id uuid.UUID, category string, radiusKm float64, responders []string) (*models.Alert, error)
	// Transition flips status only when the current status is in from.
	// Returns models.ErrNotFound or models.ErrConflict otherwise.
	Transition(ctx context.Context, id uuid.UUID, from []models.AlertStatus, to models.AlertStatus, acceptedBy *string) (*models.Alert, error)
	// Delete hard-removes the row, reporting whether one was actually removed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, page, pageSize int) ([]*models.Alert, error)
	// ListActive returns non-terminal alerts, optionally narrowed to a shard.
	ListActive(ctx context.Context, shard string) ([]*models.Alert, error)
	// ScanAndTimeout atomically flips every `new` alert whose deadline has
	// passed to `timed_out`, returning exactly the flipped rows.
	ScanAndTimeout(ctx context.Context, now time.Time) ([]*models.Alert, error)
	// ListEscalatable returns `new` alerts created at or before cutoff that are
	// still at a radius below escalatedRadius.
	ListEscalatable(ctx context.Context, cutoff time.Time, escalatedRadiusKm float64) ([]*models.Alert, error)

	GetAlertFromCache(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	SetAlertCache(ctx context.Context, alert *models.Alert) error
	InvalidateAlertCache(ctx context.Context, id uuid.UUID) error
}

// ResponderRepository is the contract for the responder registry.
type ResponderRepository interface {
	Upsert(ctx context.Context, responder *models.Responder) error
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error
	ListByDepartment(ctx context.Context, department models.Department) ([]*models.Responder, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.Responder, error)
}

// Classifier maps free text and/or an audio reference to an emergency
// category. Implementations must degrade to a default category instead of
// returning an error for collaborator failures.
type Classifier interface {
	Classify(ctx context.Context, message, audioRef string) string
}

// ResponderMatcher finds responder ids near a point for a category.
type ResponderMatcher interface {
	FindNearby(ctx context.Context, lat, lng float64, category string, radiusKm float64) ([]string, error)
}

// DispatchNotifier enqueues push notifications for targeted responders.
type DispatchNotifier interface {
	EnqueueDispatch(ctx context.Context, event notifier.DispatchEvent) error
}
