package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateAlertRequest is the citizen-facing alert creation DTO. Message and
// audio_ref are each optional; classification falls back to the default
// category when both are absent.
type CreateAlertRequest struct {
	ReporterID string `json:"reporter_id" validate:"required"`
	Message    string `json:"message,omitempty"`
	AudioRef   string `json:"audio_ref,omitempty"`
	// No `required` on coordinates: 0 is a legal latitude (equator) and
	// longitude (prime meridian); only the range is validated.
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// AcceptAlertRequest identifies the responder taking the alert.
type AcceptAlertRequest struct {
	ResponderID string `json:"responder_id" validate:"required"`
}

// RegisterResponderRequest registers a unit; idempotent on re-registration.
type RegisterResponderRequest struct {
	ID         string `json:"id" validate:"required"`
	Department string `json:"department" validate:"required,oneof=police fire"`
	PushURL    string `json:"push_url,omitempty" validate:"omitempty,url"`
}

// UpdateLocationRequest carries a responder position report. Coordinates are
// range-validated only; 0 is a legal value on both axes.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// AlertResponse is the alert representation returned by the API.
type AlertResponse struct {
	ID                 uuid.UUID `json:"id"`
	ReporterID         string    `json:"reporter_id"`
	Message            string    `json:"message,omitempty"`
	AudioRef           string    `json:"audio_ref,omitempty"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Category           string    `json:"category"`
	Status             string    `json:"status"`
	AcceptedBy         *string   `json:"accepted_by,omitempty"`
	RadiusKm           float64   `json:"radius_km"`
	Deadline           time.Time `json:"deadline"`
	TargetedResponders []string  `json:"targeted_responders"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ResponderResponse is the responder representation returned by the API.
type ResponderResponse struct {
	ID         string     `json:"id"`
	Department string     `json:"department"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	PushURL    string     `json:"push_url,omitempty"`
	LocatedAt  *time.Time `json:"located_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
