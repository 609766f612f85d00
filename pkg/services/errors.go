// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Error kinds shared by every component. Callers match them with errors.Is.
var (
	// ErrValidation marks malformed input (400 Bad Request). Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown id (404 Not Found).
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks an operation that is illegal for the record's current status (409 Conflict).
	ErrInvalidState = errors.New("invalid state")

	// ErrTransientService marks an adapter timeout or network failure. Retried by policy.
	ErrTransientService = errors.New("transient service error")

	// ErrTerminalService marks a permanent adapter failure. Never retried.
	ErrTerminalService = errors.New("terminal service error")
)

// Error codes returned in API responses.
const (
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeInvalidState     = "invalid_state"
	CodeTransientService = "transient_service_error"
	CodeTerminalService  = "terminal_service_error"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, message string) *ServiceError {
	return &ServiceError{Op: op, Code: CodeValidation, Message: message, Err: ErrValidation}
}

// NewNotFoundError reports an unknown record. err is usually the persistence error.
func NewNotFoundError(op, message string, err error) *ServiceError {
	if err == nil {
		err = ErrNotFound
	} else {
		err = fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return &ServiceError{Op: op, Code: CodeNotFound, Message: message, Err: err}
}

// NewInvalidStateError reports an operation that the current status does not allow.
func NewInvalidStateError(op, message string) *ServiceError {
	return &ServiceError{Op: op, Code: CodeInvalidState, Message: message, Err: ErrInvalidState}
}

// NewTransientServiceError wraps a retryable adapter failure.
func NewTransientServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: CodeTransientService, Err: fmt.Errorf("%w: %w", ErrTransientService, err)}
}

// NewTerminalServiceError wraps a permanent adapter failure.
func NewTerminalServiceError(op string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: CodeTerminalService, Err: fmt.Errorf("%w: %w", ErrTerminalService, err)}
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState checks if an error is a state conflict that should return HTTP 409.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsTransient checks if an error may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientService)
}

// IsTerminal checks if an error is a permanent adapter failure.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrTerminalService)
}

// CodeOf returns the API error code for err, or "internal_error".
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Code != "" {
		return serviceErr.Code
	}

	switch {
	case IsValidationError(err):
		return CodeValidation
	case IsNotFound(err):
		return CodeNotFound
	case IsInvalidState(err):
		return CodeInvalidState
	case IsTransient(err):
		return CodeTransientService
	case IsTerminal(err):
		return CodeTerminalService
	default:
		return "internal_error"
	}
}
