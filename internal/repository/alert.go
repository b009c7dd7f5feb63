package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/service"
	"github.com/redis/go-redis/v9"
)

const alertColumns = `
	id,
	reporter_id,
	message,
	audio_ref,
	latitude,
	longitude,
	category,
	status,
	accepted_by,
	radius_km,
	deadline,
	targeted_responders,
	created_at,
	updated_at
`

type AlertRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewAlertRepository(db *pgxpool.Pool, redisClient *redis.Client) service.AlertRepository {
	return &AlertRepository{
		db:          db,
		redisClient: redisClient,
	}
}

func scanAlert(row pgx.Row) (*models.Alert, error) {
	alert := &models.Alert{}
	err := row.Scan(
		&alert.ID,
		&alert.ReporterID,
		&alert.Message,
		&alert.AudioRef,
		&alert.Latitude,
		&alert.Longitude,
		&alert.Category,
		&alert.Status,
		&alert.AcceptedBy,
		&alert.RadiusKm,
		&alert.Deadline,
		&alert.TargetedResponders,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if alert.TargetedResponders == nil {
		alert.TargetedResponders = []string{}
	}
	return alert, nil
}

func collectAlerts(rows pgx.Rows) ([]*models.Alert, error) {
	defer rows.Close()
	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during alert rows iteration: %w", err)
	}
	return alerts, nil
}

// Create inserts the preliminary alert record. Atomic: either the full row is
// persisted or nothing is.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (reporter_id, message, audio_ref, latitude, longitude, category, status, radius_km, deadline, targeted_responders)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		alert.ReporterID,
		alert.Message,
		alert.AudioRef,
		alert.Latitude,
		alert.Longitude,
		alert.Category,
		alert.Status,
		alert.RadiusKm,
		alert.Deadline,
		alert.TargetedResponders,
	).Scan(&alert.ID, &alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID returns an alert by its UUID.
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1;`

	alert, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}
	return alert, nil
}

// UpdateEnrichment persists category, radius and the targeted responder set in
// a single statement. Status is deliberately untouched: an enrichment pass
// racing a transition must never move status backwards.
func (r *AlertRepository) UpdateEnrichment(ctx context.Context, id uuid.UUID, category string, radiusKm float64, responders []string) (*models.Alert, error) {
	if responders == nil {
		responders = []string{}
	}
	query := `
		UPDATE alerts SET
			category = $1,
			radius_km = $2,
			targeted_responders = $3,
			updated_at = NOW()
		WHERE id = $4
		RETURNING ` + alertColumns + `;
	`
	alert, err := scanAlert(r.db.QueryRow(ctx, query, category, radiusKm, responders, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update alert enrichment: %w", err)
	}

	if err := r.InvalidateAlertCache(ctx, id); err != nil {
		// Cache staleness is bounded by the TTL; not fatal.
		return alert, nil
	}
	return alert, nil
}

// Transition conditionally flips status. The WHERE clause on the current
// status makes concurrent transitions (responder accept vs. timeout sweep)
// race-safe: exactly one statement finds the row still in a from status.
// The single-winner guarantee lives entirely in this statement's atomicity
// in Postgres, not in application code, so it is only observable against a
// real database, not through the mocked repository used in unit tests.
func (r *AlertRepository) Transition(ctx context.Context, id uuid.UUID, from []models.AlertStatus, to models.AlertStatus, acceptedBy *string) (*models.Alert, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	query := `
		UPDATE alerts SET
			status = $1,
			accepted_by = COALESCE($2, accepted_by),
			updated_at = NOW()
		WHERE id = $3 AND status = ANY($4)
		RETURNING ` + alertColumns + `;
	`
	alert, err := scanAlert(r.db.QueryRow(ctx, query, to, acceptedBy, id, fromStrs))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing row from an illegal transition.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("alert %s cannot move to %s: %w", id, to, models.ErrConflict)
		}
		return nil, fmt.Errorf("failed to transition alert: %w", err)
	}

	_ = r.InvalidateAlertCache(ctx, id)
	return alert, nil
}

// Delete hard-removes an alert, reporting whether a row was actually removed.
func (r *AlertRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE id = $1;`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert: %w", err)
	}

	_ = r.InvalidateAlertCache(ctx, id)
	return cmdTag.RowsAffected() > 0, nil
}

// List returns alerts with pagination, newest first.
func (r *AlertRepository) List(ctx context.Context, page, pageSize int) ([]*models.Alert, error) {
	offset := (page - 1) * pageSize

	query := `SELECT ` + alertColumns + ` FROM alerts ORDER BY created_at DESC LIMIT $1 OFFSET $2;`
	rows, err := r.db.Query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return collectAlerts(rows)
}

// ListActive returns non-terminal alerts, optionally narrowed to a 1-degree
// geographic shard.
func (r *AlertRepository) ListActive(ctx context.Context, shard string) ([]*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status IN ('new', 'accepted')
		AND ($1 = '' OR floor(latitude)::int::text || ':' || floor(longitude)::int::text = $1)
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(ctx, query, shard)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return collectAlerts(rows)
}

// ScanAndTimeout flips every expired `new` alert to `timed_out` in one
// statement and returns exactly the rows it flipped. Rows that left `new`
// concurrently are untouched.
func (r *AlertRepository) ScanAndTimeout(ctx context.Context, now time.Time) ([]*models.Alert, error) {
	query := `
		UPDATE alerts SET
			status = 'timed_out',
			updated_at = NOW()
		WHERE status = 'new' AND deadline <= $1
		RETURNING ` + alertColumns + `;
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to scan and timeout alerts: %w", err)
	}
	alerts, err := collectAlerts(rows)
	if err != nil {
		return nil, err
	}

	for _, alert := range alerts {
		_ = r.InvalidateAlertCache(ctx, alert.ID)
	}
	return alerts, nil
}

// ListEscalatable returns `new` alerts older than the cutoff still at a radius
// below the escalated one.
func (r *AlertRepository) ListEscalatable(ctx context.Context, cutoff time.Time, escalatedRadiusKm float64) ([]*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = 'new' AND created_at <= $1 AND radius_km < $2;
	`
	rows, err := r.db.Query(ctx, query, cutoff, escalatedRadiusKm)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalatable alerts: %w", err)
	}
	return collectAlerts(rows)
}

// GetAlertFromCache tries to fetch an alert from Redis. A nil, nil return
// means a cache miss.
func (r *AlertRepository) GetAlertFromCache(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	key := fmt.Sprintf("alert:%s", id.String())
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert from cache: %w", err)
	}

	alert := &models.Alert{}
	if err := json.Unmarshal(val, alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert from cache: %w", err)
	}
	return alert, nil
}

// SetAlertCache stores an alert in Redis.
func (r *AlertRepository) SetAlertCache(ctx context.Context, alert *models.Alert) error {
	key := fmt.Sprintf("alert:%s", alert.ID.String())
	val, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert for cache: %w", err)
	}
	// Short TTL: an alert moves through its lifecycle within a minute.
	if err := r.redisClient.Set(ctx, key, val, time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set alert in cache: %w", err)
	}
	return nil
}

// InvalidateAlertCache removes an alert from the Redis cache.
func (r *AlertRepository) InvalidateAlertCache(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("alert:%s", id.String())
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate alert cache: %w", err)
	}
	return nil
}
