package apperr

import (
	"errors"
	"fmt"
)

// Error kinds shared across domain packages.
// Package-level sentinels wrap one of these so the HTTP layer can classify
// failures with errors.Is without knowing every package.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
)

// Validation returns an error of kind ErrValidation with a field-level message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Persistence wraps a store error so callers can tell it apart from bad input.
// An error that already has a kind (a repository mapping a constraint
// violation to ErrValidation, say) is returned unchanged.
func Persistence(op string, err error) error {
	if err == nil || Classified(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// Classified reports whether err carries one of the caller-facing kinds.
func Classified(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
