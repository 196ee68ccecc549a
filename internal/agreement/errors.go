package agreement

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no agreement exists for an id
var ErrNotFound = errors.New("agreement not found")

// ValidationError rejects input before it reaches persistence
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
