package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/service"
)

type ResponderRepository struct {
	db *pgxpool.Pool
}

func NewResponderRepository(db *pgxpool.Pool) service.ResponderRepository {
	return &ResponderRepository{
		db: db,
	}
}

// Upsert registers a responder, idempotently: re-registering an existing unit
// updates its department and push address without touching its location.
func (r *ResponderRepository) Upsert(ctx context.Context, responder *models.Responder) error {
	query := `
		INSERT INTO responders (id, department, push_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			department = EXCLUDED.department,
			push_url = EXCLUDED.push_url
		RETURNING created_at;
	`
	err := r.db.QueryRow(ctx, query,
		responder.ID,
		responder.Department,
		responder.PushURL,
	).Scan(&responder.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert responder: %w", err)
	}
	return nil
}

// UpdateLocation records the unit's last known position.
func (r *ResponderRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	query := `
		UPDATE responders SET
			latitude = $1,
			longitude = $2,
			located_at = NOW()
		WHERE id = $3;
	`
	cmdTag, err := r.db.Exec(ctx, query, lat, lng, id)
	if err != nil {
		return fmt.Errorf("failed to update responder location: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("responder %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListByDepartment returns every responder in a pool. Units without a known
// location are included; the matcher skips them.
func (r *ResponderRepository) ListByDepartment(ctx context.Context, department models.Department) ([]*models.Responder, error) {
	query := `
		SELECT id, department, latitude, longitude, push_url, located_at, created_at
		FROM responders
		WHERE department = $1;
	`
	rows, err := r.db.Query(ctx, query, department)
	if err != nil {
		return nil, fmt.Errorf("failed to list responders by department: %w", err)
	}
	defer rows.Close()

	responders := make([]*models.Responder, 0)
	for rows.Next() {
		responder := &models.Responder{}
		err := rows.Scan(
			&responder.ID,
			&responder.Department,
			&responder.Latitude,
			&responder.Longitude,
			&responder.PushURL,
			&responder.LocatedAt,
			&responder.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, responder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during responder rows iteration: %w", err)
	}
	return responders, nil
}

// GetByIDs returns the responders for a set of identifiers, for notification
// address lookup.
func (r *ResponderRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Responder, error) {
	if len(ids) == 0 {
		return []*models.Responder{}, nil
	}

	query := `
		SELECT id, department, latitude, longitude, push_url, located_at, created_at
		FROM responders
		WHERE id = ANY($1);
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get responders by ids: %w", err)
	}
	defer rows.Close()

	responders := make([]*models.Responder, 0, len(ids))
	for rows.Next() {
		responder := &models.Responder{}
		err := rows.Scan(
			&responder.ID,
			&responder.Department,
			&responder.Latitude,
			&responder.Longitude,
			&responder.PushURL,
			&responder.LocatedAt,
			&responder.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responder row: %w", err)
		}
		responders = append(responders, responder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during responder rows iteration: %w", err)
	}
	return responders, nil
}
