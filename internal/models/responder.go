package models

import (
	"time"
)

// Department identifies the responder pool a unit belongs to.
type Department string

const (
	DepartmentPolice Department = "police"
	DepartmentFire   Department = "fire"
)

// Responder is a police or fire unit that can be dispatched to alerts.
// Latitude/Longitude are nil until the unit reports a position.
type Responder struct {
	ID         string     `json:"id"`
	Department Department `json:"department"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	PushURL    string     `json:"push_url,omitempty"`
	LocatedAt  *time.Time `json:"located_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasLocation reports whether the unit has ever reported a position.
func (r *Responder) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}
