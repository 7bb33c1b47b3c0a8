package services

import (
	"errors"
	"fmt"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/repositories"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("not permitted for this location")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a malformed or missing request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(from, to models.TransferStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// translateStoreError maps repository sentinels onto the service taxonomy.
// A status conflict never leaves the service as anything but an invalid
// transition.
func translateStoreError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s %w", what, ErrNotFound)
	case errors.Is(err, repositories.ErrStatusConflict):
		return fmt.Errorf("%w: status changed by another request", ErrInvalidTransition)
	case errors.Is(err, repositories.ErrDuplicate):
		return &ValidationError{Field: what, Message: "already exists"}
	}
	return err
}

// FailureReason classifies an error for metrics and logs.
func FailureReason(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return "internal"
}
