package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or invalid caller-supplied field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Required builds the ValidationError for an empty mandatory field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "is required"}
}

// StorageError wraps a failure of the persistence layer.
// Err carries the driver message and must not be shown to end users.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStorage reports whether err is, or wraps, a StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
