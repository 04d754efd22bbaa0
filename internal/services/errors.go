package services

import (
	"errors"
	"fmt"
)

// Error kinds returned by the services. Callers match them with errors.Is;
// the wrapped message is safe to show to the client.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrWindowClosed = errors.New("challenge window closed")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyRedeemed is a conflict on a date that was already rewarded
	ErrAlreadyRedeemed = fmt.Errorf("%w: operation already executed for this date", ErrConflict)
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func notFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
