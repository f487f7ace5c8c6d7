// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrAlreadyClaimed  = errors.New("already claimed")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "scoring", "standings", "competition"
	Op      string // Operation that failed, e.g., "Classify", "Finalize"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Roster domain errors
var (
	ErrStudentNotFound = NewDomainError("roster", "FindStudent", ErrNotFound, "student not found")
	ErrSchoolNotFound  = NewDomainError("roster", "FindSchool", ErrNotFound, "school not found")
	ErrInvalidGrade    = NewDomainError("roster", "Validate", ErrValueOutOfRange, "grade must be between 1 and 12")
)

// Competition domain errors
var (
	ErrCompetitionNotFound  = NewDomainError("competition", "Find", ErrNotFound, "competition not found")
	ErrCompetitionCompleted = NewDomainError("competition", "Finalize", ErrInvalidState, "competition already completed")
	ErrCompetitionNotActive = NewDomainError("competition", "Finalize", ErrStateTransition, "competition is not active")
	ErrFinalizeInProgress   = NewDomainError("competition", "Finalize", ErrAlreadyClaimed, "finalization already in progress")
	ErrEventTypeNotFound    = NewDomainError("competition", "FindEventType", ErrNotFound, "event type not found")
)

// Scoring domain errors
var (
	ErrThresholdsNotFound   = NewDomainError("scoring", "LoadThresholds", ErrNotFound, "tier thresholds not configured")
	ErrThresholdGap         = NewDomainError("scoring", "ValidateThresholds", ErrInvalidEntity, "tier threshold ranges must be contiguous")
	ErrThresholdOverlap     = NewDomainError("scoring", "ValidateThresholds", ErrInvalidEntity, "tier threshold ranges must not overlap")
	ErrNegativeBasePoints   = NewDomainError("scoring", "ValidateThresholds", ErrNegativeValue, "base points cannot be negative")
	ErrMultiplierOutOfRange = NewDomainError("scoring", "ValidateMultiplier", ErrValueOutOfRange, "grade multiplier out of bounds")
)

// Records domain errors
var (
	ErrNoBaselineRecord    = NewDomainError("records", "FindBaseline", ErrNotFound, "no baseline record for student and event")
	ErrPersonalBestMissing = NewDomainError("records", "FindPersonalBest", ErrNotFound, "no personal best recorded yet")
)

// Standings domain errors
var (
	ErrStandingNotFound = NewDomainError("standings", "Find", ErrNotFound, "standing not found")
	ErrStandingsStale   = NewDomainError("standings", "Load", ErrInvalidState, "cached standings are stale")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsTransient checks if the error is a transient store failure. Per the scoring
// pipeline's failure policy, transient read failures degrade to the conservative
// negative answer instead of blocking downstream students.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}
