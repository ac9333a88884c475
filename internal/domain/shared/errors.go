package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError so callers can react without parsing codes
type ErrorKind string

const (
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindInvalidTransition  ErrorKind = "INVALID_STATE_TRANSITION"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindConcurrency        ErrorKind = "CONCURRENCY_CONFLICT"
	KindInvariantViolation ErrorKind = "INVARIANT_VIOLATION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its code.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError builds a ValidationError with a formatted message
func NewValidationError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindValidation, code, fmt.Sprintf(format, args...))
}

// NewTransitionError builds an InvalidStateTransition error
func NewTransitionError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindInvalidTransition, code, fmt.Sprintf(format, args...))
}

// NewNotFoundError builds a NotFound error for the named resource
func NewNotFoundError(resource string, id fmt.Stringer) *DomainError {
	return NewDomainError(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s %s not found", resource, id))
}

// NewConcurrencyError builds a ConcurrencyConflict error
func NewConcurrencyError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindConcurrency, code, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first DomainError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// Common domain errors, usable as errors.Is targets
var (
	ErrValidation          = NewDomainError(KindValidation, "VALIDATION_ERROR", "Invalid input provided")
	ErrInvalidTransition   = NewDomainError(KindInvalidTransition, "INVALID_STATE_TRANSITION", "Operation not allowed in current state")
	ErrNotFound            = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrConcurrencyConflict = NewDomainError(KindConcurrency, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvariantViolation  = NewDomainError(KindInvariantViolation, "INVARIANT_VIOLATION", "Stored state disagrees with its source of truth")
)
