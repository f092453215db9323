// Package service implements the authentication and task use cases on top of
// the storage, refresh-store and token-codec layers.
package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services. Handlers map them to HTTP statuses.
var (
	// ErrValidation wraps input that failed validation; see ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when registering a username that is taken.
	ErrConflict = errors.New("username already exists")

	// ErrUnauthorized covers every authentication failure. The cause is never
	// exposed to the caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for tasks that are absent or owned by someone else.
	ErrNotFound = errors.New("not found")

	// ErrInternal marks storage and infrastructure failures.
	ErrInternal = errors.New("internal error")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error()}
}

func internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
