package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    AlertStatus
		to      AlertStatus
		allowed bool
	}{
		{"new to accepted", StatusNew, StatusAccepted, true},
		{"new to canceled", StatusNew, StatusCanceled, true},
		{"new to timed_out", StatusNew, StatusTimedOut, true},
		{"new to resolved is illegal", StatusNew, StatusResolved, false},
		{"accepted to resolved", StatusAccepted, StatusResolved, true},
		{"accepted to canceled", StatusAccepted, StatusCanceled, true},
		{"accepted to timed_out is illegal", StatusAccepted, StatusTimedOut, false},
		{"resolved is terminal", StatusResolved, StatusCanceled, false},
		{"canceled is terminal", StatusCanceled, StatusAccepted, false},
		{"timed_out is terminal", StatusTimedOut, StatusAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSourcesOf(t *testing.T) {
	assert.Equal(t, []AlertStatus{StatusNew}, SourcesOf(StatusAccepted))
	assert.Equal(t, []AlertStatus{StatusAccepted}, SourcesOf(StatusResolved))
	assert.Equal(t, []AlertStatus{StatusNew, StatusAccepted}, SourcesOf(StatusCanceled))
	assert.Equal(t, []AlertStatus{StatusNew}, SourcesOf(StatusTimedOut))
	assert.Empty(t, SourcesOf(StatusNew))
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusNew.IsTerminal())
	assert.False(t, StatusAccepted.IsTerminal())
	assert.True(t, StatusResolved.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.True(t, StatusTimedOut.IsTerminal())
}

func TestShardKey(t *testing.T) {
	alert := &Alert{Latitude: 34.05, Longitude: -118.25}
	// Negative longitudes floor away from zero.
	assert.Equal(t, "34:-119", alert.ShardKey())

	assert.Equal(t, "0:0", ShardKeyFor(0.5, 0.5))
	assert.Equal(t, "-1:-1", ShardKeyFor(-0.5, -0.5))
	assert.Equal(t, "55:37", ShardKeyFor(55.75, 37.61))
}

func TestTargetedTo(t *testing.T) {
	alert := &Alert{TargetedResponders: []string{"unit-1", "unit-2"}}
	assert.True(t, alert.TargetedTo("unit-1"))
	assert.False(t, alert.TargetedTo("unit-3"))

	empty := &Alert{}
	assert.False(t, empty.TargetedTo("unit-1"))
}
