package models

import "time"

// SyncStatus follows the status lifecycle of the workflow backing a sync.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// IsTerminal reports whether the sync finished.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusCompleted || s == SyncStatusFailed
}

// SyncStatusFor maps a workflow status onto the sync lifecycle.
func SyncStatusFor(status WorkflowStatus) SyncStatus {
	switch status {
	case WorkflowStatusActive:
		return SyncStatusInProgress
	case WorkflowStatusCompleted:
		return SyncStatusCompleted
	case WorkflowStatusFailed:
		return SyncStatusFailed
	default:
		return SyncStatusPending
	}
}

// SyncOperation reconciles one record between a source and a target service.
type SyncOperation struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	SourceID   string         `json:"sourceId"`
	TargetID   string         `json:"targetId"`
	WorkflowID string         `json:"workflowId"`
	Status     SyncStatus     `json:"status"`
	SyncedData map[string]any `json:"syncedData,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	SyncedAt   *time.Time     `json:"syncedAt,omitempty"`
}

// Key identifies syncs that must not run concurrently.
func (s *SyncOperation) Key() string {
	return SyncKey(s.Type, s.SourceID, s.TargetID)
}

// SyncKey builds the single-flight key for a sync.
func SyncKey(syncType, sourceID, targetID string) string {
	return syncType + "|" + sourceID + "|" + targetID
}
