package shared

import "errors"

// Sentinel errors shared across feature packages.
var (
	// ErrNotFound signals a missing row regardless of entity.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers both unknown accounts and bad
	// passwords so responses cannot be used to probe for emails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing is returned when no token accompanied a
	// mutating request.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch is returned when the supplied token does not
	// match the session's.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
