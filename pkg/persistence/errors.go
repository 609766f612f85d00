package persistence

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every record-specific not found error.
var ErrNotFound = errors.New("not found")

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = fmt.Errorf("workflow %w", ErrNotFound)

	// ErrEventNotFound indicates an event was not found by the given identifier.
	ErrEventNotFound = fmt.Errorf("event %w", ErrNotFound)

	// ErrSyncOperationNotFound indicates a sync operation was not found by the given identifier.
	ErrSyncOperationNotFound = fmt.Errorf("sync operation %w", ErrNotFound)

	// ErrWebhookNotFound indicates a webhook registration was not found by the given identifier.
	ErrWebhookNotFound = fmt.Errorf("webhook %w", ErrNotFound)
)

// RecordError wraps a storage failure with the operation and the record it concerned.
type RecordError struct {
	Op   string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	Kind string // Record kind ("workflow", "event", ...)
	ID   string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// NewRecordError creates a new record error with context.
func NewRecordError(op, kind, id string, err error) *RecordError {
	return &RecordError{
		Op:   op,
		Kind: kind,
		ID:   id,
		Err:  err,
	}
}

// NotFoundFor returns the not found sentinel for a record kind.
func NotFoundFor(kind string) error {
	switch kind {
	case KindWorkflow:
		return ErrWorkflowNotFound
	case KindEvent:
		return ErrEventNotFound
	case KindSyncOperation:
		return ErrSyncOperationNotFound
	case KindWebhook:
		return ErrWebhookNotFound
	default:
		return ErrNotFound
	}
}

// IsNotFound checks if an error indicates a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}
