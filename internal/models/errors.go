package models

import "errors"

// Sentinel errors forming the caller-visible taxonomy. Handlers map these to
// HTTP status codes with errors.Is; everything else is an internal error.
var (
	// ErrNotFound - the id does not resolve to a record.
	ErrNotFound = errors.New("not found")
	// ErrConflict - an illegal lifecycle transition was attempted; the record is unchanged.
	ErrConflict = errors.New("conflict: illegal state transition")
	// ErrValidation - required input is missing or malformed; no state change.
	ErrValidation = errors.New("validation failed")
)
