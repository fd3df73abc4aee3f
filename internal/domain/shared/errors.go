package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeConflict      = "CONFLICT"
	CodeInvalidState  = "INVALID_STATE"
	CodeTransient     = "TRANSIENT_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers write errors.Is(err, shared.ErrNotFound).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause returns a copy of the error carrying cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports input that violates a domain rule
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports a missing entity
func NewNotFoundError(entity string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", entity, id))
}

// NewConfigurationError reports missing or inconsistent operator configuration,
// such as a tenant without an applicable pricing plan.
func NewConfigurationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConfiguration, fmt.Sprintf(format, args...))
}

// NewConflictError reports a uniqueness or concurrency conflict
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewInvalidStateError reports an operation that is not allowed in the current state
func NewInvalidStateError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// NewTransientError wraps an infrastructure failure that may succeed on retry.
// The cause is kept for logging and never exposed to clients.
func NewTransientError(op string, cause error) *DomainError {
	return &DomainError{
		Code:    CodeTransient,
		Message: fmt.Sprintf("%s: temporary failure, retry later", op),
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation    = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConfiguration = NewDomainError(CodeConfiguration, "Configuration is missing or invalid")
	ErrConflict      = NewDomainError(CodeConflict, "Resource already exists or was modified concurrently")
	ErrInvalidState  = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrTransient     = NewDomainError(CodeTransient, "Temporary failure, retry later")
)

// IsRetryable reports whether err is a transient failure
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
