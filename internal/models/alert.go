package models

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusNew      AlertStatus = "new"
	StatusAccepted AlertStatus = "accepted"
	StatusResolved AlertStatus = "resolved"
	StatusCanceled AlertStatus = "canceled"
	StatusTimedOut AlertStatus = "timed_out"
)

// transitions is the full set of legal status edges. Everything else is a Conflict.
var transitions = map[AlertStatus][]AlertStatus{
	StatusNew:      {StatusAccepted, StatusCanceled, StatusTimedOut},
	StatusAccepted: {StatusResolved, StatusCanceled},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to AlertStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func (s AlertStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// allStatuses in lifecycle order, for deterministic SourcesOf output.
var allStatuses = []AlertStatus{StatusNew, StatusAccepted, StatusResolved, StatusCanceled, StatusTimedOut}

// SourcesOf returns every status from which to is legally reachable. The
// conditional store update takes this as its from filter, so the transition
// table stays the single authority on lifecycle edges.
func SourcesOf(to AlertStatus) []AlertStatus {
	from := make([]AlertStatus, 0, len(allStatuses))
	for _, s := range allStatuses {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

type Alert struct {
	ID                 uuid.UUID   `json:"id"`
	ReporterID         string      `json:"reporter_id"`
	Message            string      `json:"message,omitempty"`
	AudioRef           string      `json:"audio_ref,omitempty"`
	Latitude           float64     `json:"latitude"`
	Longitude          float64     `json:"longitude"`
	Category           string      `json:"category"`
	Status             AlertStatus `json:"status"`
	AcceptedBy         *string     `json:"accepted_by,omitempty"`
	RadiusKm           float64     `json:"radius_km"`
	Deadline           time.Time   `json:"deadline"`
	TargetedResponders []string    `json:"targeted_responders"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// ShardKey returns the 1-degree geographic cell the alert belongs to,
// used as the topic suffix for bus routing.
func (a *Alert) ShardKey() string {
	return ShardKeyFor(a.Latitude, a.Longitude)
}

// ShardKeyFor maps a coordinate onto its 1-degree cell, e.g. (34.05, -118.25) -> "34:-119".
func ShardKeyFor(lat, lng float64) string {
	return fmt.Sprintf("%d:%d", int(math.Floor(lat)), int(math.Floor(lng)))
}

// TargetedTo reports whether the alert is currently dispatched to the given responder.
func (a *Alert) TargetedTo(responderID string) bool {
	for _, id := range a.TargetedResponders {
		if id == responderID {
			return true
		}
	}
	return false
}
