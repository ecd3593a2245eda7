package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidAction        = errors.New("invalid action")
	ErrNotFound             = errors.New("not found")
	ErrBackendUnavailable   = errors.New("completion backend unavailable")
	ErrRunFailed            = errors.New("run failed")
	ErrRunTimedOut          = errors.New("run timed out")
	ErrMalformedResponse    = errors.New("malformed backend response")
	ErrStoreWriteFailed     = errors.New("store write failed")
	ErrOrphanedResourceRisk = errors.New("orphaned backend resource")
	ErrRunInProgress        = errors.New("run already in progress for thread")
	ErrReferencedAgent      = errors.New("agent is referenced by a chatbot")
	ErrAlreadyFinalized     = errors.New("message already finalized")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Required returns a ValidationError for an empty field.
func Required(field string) error {
	return &ValidationError{Field: field}
}
