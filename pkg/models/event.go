package models

import "time"

// ProcessingStatus tracks how far an ingested event got through dispatch.
type ProcessingStatus string

const (
	ProcessingStatusPending   ProcessingStatus = "pending"
	ProcessingStatusProcessed ProcessingStatus = "processed"
	ProcessingStatusFailed    ProcessingStatus = "failed"
)

// Valid reports whether s is a known processing status.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case ProcessingStatusPending, ProcessingStatusProcessed, ProcessingStatusFailed:
		return true
	default:
		return false
	}
}

// Event is an immutable fact ingested from a producer. Only the processing fields
// change after ingestion.
type Event struct {
	ID               string           `json:"id"`
	EventType        string           `json:"eventType"`
	Source           string           `json:"source"`
	Data             map[string]any   `json:"data,omitempty"`
	IdempotencyKey   string           `json:"idempotencyKey,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ProcessingResult map[string]any   `json:"processingResult,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// WorkflowID returns the workflow an event is addressed to, if the producer set one.
func (e *Event) WorkflowID() string {
	if e.Data == nil {
		return ""
	}

	id, _ := e.Data["workflowId"].(string)

	return id
}

// Clone returns a copy whose maps can be modified independently.
func (e *Event) Clone() *Event {
	clone := *e
	clone.Data = copyMap(e.Data)
	clone.ProcessingResult = copyMap(e.ProcessingResult)

	return &clone
}
