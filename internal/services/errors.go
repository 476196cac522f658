package services

import (
	"errors"

	"github.com/diewo77/gescon/internal/validation"
)

// Error taxonomy of the engine. Handlers map these to HTTP statuses:
// ValidationError -> 400, NotFoundError -> 404, ConflictError -> 409,
// ErrNoRemainingBalance -> 400 with a dedicated code so callers can disable
// the action. Anything else is an internal failure.

type ValidationError struct {
	Violations validation.Violations
}

func NewValidationError(v validation.Violations) *ValidationError {
	return &ValidationError{Violations: v}
}

func (e *ValidationError) Error() string { return "validation_failed" }

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + "_not_found" }

type ConflictError struct {
	Code string
}

func (e *ConflictError) Error() string { return e.Code }

// ErrNoRemainingBalance signals that a convention is fully settled and no
// further tranche can be added.
var ErrNoRemainingBalance = errors.New("no_remaining_balance")
