package shared

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the acting role lacks permission for the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition indicates the requested status change is not reachable
	// from the current status, including stale-state races.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)
