package geo

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/openresq/emergency_dispatch/internal/models"
	"github.com/openresq/emergency_dispatch/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestMatcher(t *testing.T) (*Matcher, *mocks.MockResponderRepository) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockResponderRepository(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	return NewMatcher(source, logger), source
}

func ptr(f float64) *float64 { return &f }

func TestPoolFor(t *testing.T) {
	assert.Equal(t, models.DepartmentPolice, PoolFor("Law & Order"))
	assert.Equal(t, models.DepartmentFire, PoolFor("Fire & Rescue"))
	// Unrecognized categories fall back to the police pool.
	assert.Equal(t, models.DepartmentPolice, PoolFor("Something Else"))
	assert.Equal(t, models.DepartmentPolice, PoolFor(""))
}

func TestFindNearby_SamePointAlwaysMatches(t *testing.T) {
	matcher, source := newTestMatcher(t)
	ctx := context.Background()

	source.EXPECT().
		ListByDepartment(ctx, models.DepartmentPolice).
		Return([]*models.Responder{
			{ID: "unit-1", Department: models.DepartmentPolice, Latitude: ptr(34.05), Longitude: ptr(-118.25)},
			{ID: "unit-2", Department: models.DepartmentPolice, Latitude: ptr(34.05), Longitude: ptr(-118.25)},
		}, nil)

	ids, err := matcher.FindNearby(ctx, 34.05, -118.25, "Law & Order", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"unit-1", "unit-2"}, ids)
}

func TestFindNearby_RadiusBoundaryIsInclusive(t *testing.T) {
	matcher, source := newTestMatcher(t)
	ctx := context.Background()

	// A unit exactly at the radius boundary must be included (<=, not <).
	boundary := Haversine(0, 0, 1, 0)

	source.EXPECT().
		ListByDepartment(ctx, models.DepartmentPolice).
		Return([]*models.Responder{
			{ID: "at-boundary", Department: models.DepartmentPolice, Latitude: ptr(1), Longitude: ptr(0)},
			{ID: "just-beyond", Department: models.DepartmentPolice, Latitude: ptr(1.001), Longitude: ptr(0)},
		}, nil)

	ids, err := matcher.FindNearby(ctx, 0, 0, "Law & Order", boundary)
	require.NoError(t, err)
	assert.Equal(t, []string{"at-boundary"}, ids)
}

func TestFindNearby_SkipsRespondersWithoutLocation(t *testing.T) {
	matcher, source := newTestMatcher(t)
	ctx := context.Background()

	source.EXPECT().
		ListByDepartment(ctx, models.DepartmentFire).
		Return([]*models.Responder{
			{ID: "located", Department: models.DepartmentFire, Latitude: ptr(10), Longitude: ptr(10)},
			{ID: "unlocated", Department: models.DepartmentFire},
		}, nil)

	ids, err := matcher.FindNearby(ctx, 10, 10, "Fire & Rescue", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"located"}, ids)
}

func TestFindNearby_FiltersByDistance(t *testing.T) {
	matcher, source := newTestMatcher(t)
	ctx := context.Background()

	// Two units within 5 km, one roughly 50 km away.
	source.EXPECT().
		ListByDepartment(ctx, models.DepartmentPolice).
		Return([]*models.Responder{
			{ID: "near-1", Department: models.DepartmentPolice, Latitude: ptr(34.06), Longitude: ptr(-118.25)},
			{ID: "near-2", Department: models.DepartmentPolice, Latitude: ptr(34.04), Longitude: ptr(-118.26)},
			{ID: "far", Department: models.DepartmentPolice, Latitude: ptr(34.5), Longitude: ptr(-118.25)},
		}, nil)

	ids, err := matcher.FindNearby(ctx, 34.05, -118.25, "Law & Order", 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"near-1", "near-2"}, ids)
}

func TestFindNearby_SourceFailure(t *testing.T) {
	matcher, source := newTestMatcher(t)
	ctx := context.Background()

	source.EXPECT().
		ListByDepartment(ctx, models.DepartmentPolice).
		Return(nil, fmt.Errorf("connection refused"))

	ids, err := matcher.FindNearby(ctx, 0, 0, "Law & Order", 5)
	require.Error(t, err)
	assert.Nil(t, ids)
}
