/*
errors.go - Centralized error types for the worked-time engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Malformed or out-of-order timestamps, rejected, never retried
  2. State conflicts  - Two active sessions racing for one user, retry the punch
  3. Lookup errors    - Missing sessions or aggregates
  4. Store errors     - Database-level failures

  Legal limit violations and integrity findings are NOT errors. They are
  reported as data (legal.Compliance, worktime.Finding) and never block a
  punch from being recorded.

USAGE:
  if errors.Is(err, generic.ErrStateConflict) {
      // another punch for this user won the race; retry this one
  }

SEE ALSO:
  - store.go: Uses these errors
  - worktime/lifecycle.go: Wraps these errors with punch context
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: zero timestamps,
	// exit at or before entry, unknown punch kinds.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict is returned when a second active session would be
	// created for a user. The punch can be retried.
	ErrStateConflict = errors.New("conflicting active session")

	// ErrDuplicatePunch is returned when a punch with the same idempotency
	// key was already recorded. Expected for network retries.
	ErrDuplicatePunch = errors.New("duplicate punch")

	// ErrSessionNotFound is returned when a referenced session doesn't exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAggregateNotFound is returned when no aggregate exists for a day.
	ErrAggregateNotFound = errors.New("daily aggregate not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StateConflictError identifies the user whose active session raced.
type StateConflictError struct {
	UserID UserID
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("user %s already has an active session", e.UserID)
}

func (e *StateConflictError) Unwrap() error {
	return ErrStateConflict
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicatePunch) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrAggregateNotFound)
}
