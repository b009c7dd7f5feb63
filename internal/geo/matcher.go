package geo

import (
	"context"
	"fmt"

	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ResponderSource lists the on-duty responders of a department pool.
type ResponderSource interface {
	ListByDepartment(ctx context.Context, department models.Department) ([]*models.Responder, error)
}

// categoryPools routes an emergency category onto the responder pool to scan.
var categoryPools = map[string]models.Department{
	"Law & Order":   models.DepartmentPolice,
	"Fire & Rescue": models.DepartmentFire,
}

// PoolFor returns the responder pool for a category. Unrecognized categories
// fall back to the police pool so a bad classification still dispatches someone.
func PoolFor(category string) models.Department {
	if pool, ok := categoryPools[category]; ok {
		return pool
	}
	return models.DepartmentPolice
}

// Matcher finds responders near a point with a linear haversine scan over the
// category's pool. At tens to low hundreds of units per pool no spatial index
// is needed.
type Matcher struct {
	source ResponderSource
	logger *logrus.Logger
}

func NewMatcher(source ResponderSource, logger *logrus.Logger) *Matcher {
	return &Matcher{
		source: source,
		logger: logger,
	}
}

// FindNearby returns the identifiers of every responder in the category's pool
// within radiusKm of the origin. Boundary is inclusive; responders without a
// known location are skipped.
func (m *Matcher) FindNearby(ctx context.Context, lat, lng float64, category string, radiusKm float64) ([]string, error) {
	pool := PoolFor(category)

	responders, err := m.source.ListByDepartment(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("matcher: failed to list responders for pool %s: %w", pool, err)
	}

	ids := make([]string, 0, len(responders))
	for _, r := range responders {
		if !r.HasLocation() {
			continue
		}
		if Haversine(lat, lng, *r.Latitude, *r.Longitude) <= radiusKm {
			ids = append(ids, r.ID)
		}
	}

	m.logger.WithFields(logrus.Fields{
		"component": "geo_matcher",
		"category":  category,
		"pool":      pool,
		"radius_km": radiusKm,
		"matched":   len(ids),
	}).Debug("Responder matching pass completed")

	return ids, nil
}
