// internal/state/errors.go
package state

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced prompt or session id is absent.
// Callers match it with errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input to a create or update operation
// with field-level detail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
