package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDate    = errors.New("date cannot be zero")
	ErrDateOutOfRange = fmt.Errorf("year must be between %d and %d", MinSeriesYear, MaxSeriesYear)
	ErrInvalidAmount  = errors.New("invalid amount")

	ErrCategoryNotFound    = errors.New("category not found")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrResponsibleNotFound = errors.New("responsible not found")
	ErrSettingsNotFound    = errors.New("settings not found")
)

// ValidationError reports malformed or out-of-constraint input.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps an opaque persistence failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage turns err into a StorageError unless it already is one
// or is a domain sentinel the caller should see as-is.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) || IsValidation(err) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrResponsibleNotFound) ||
		errors.Is(err, ErrSettingsNotFound) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
