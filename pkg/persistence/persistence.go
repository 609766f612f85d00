// Package persistence provides the storage abstraction for workflows, events, sync operations
// and webhook registrations.
package persistence

import (
	"context"

	"github.com/magicians360/pinkflow/pkg/models"
)

// Record kinds, also used as table names, directory names and key prefixes by the backends.
const (
	KindWorkflow      = "workflow"
	KindEvent         = "event"
	KindSyncOperation = "sync_operation"
	KindWebhook       = "webhook"
)

// Persistence groups the record repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	EventRepository() EventRepository
	SyncRepository() SyncRepository
	WebhookRepository() WebhookRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowFilter restricts workflow listings. Zero values match everything.
type WorkflowFilter struct {
	Status models.WorkflowStatus
	Owner  string
}

// Match reports whether the workflow passes the filter.
func (f WorkflowFilter) Match(workflow *models.Workflow) bool {
	if f.Status != "" && workflow.Status != f.Status {
		return false
	}

	return f.Owner == "" || workflow.Owner == f.Owner
}

// EventFilter restricts event listings. Zero values match everything.
type EventFilter struct {
	Status    models.ProcessingStatus `json:"status,omitempty"`
	EventType string                  `json:"type,omitempty"`
}

// Match reports whether the event passes the filter.
func (f EventFilter) Match(event *models.Event) bool {
	if f.Status != "" && event.ProcessingStatus != f.Status {
		return false
	}

	return f.EventType == "" || event.EventType == f.EventType
}

// WorkflowRepository stores workflows with their steps.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context, filter WorkflowFilter) ([]*models.Workflow, error)
}

// EventRepository stores ingested events.
type EventRepository interface {
	Save(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter EventFilter) ([]*models.Event, error)
}

// SyncRepository stores sync operations.
type SyncRepository interface {
	Save(ctx context.Context, operation *models.SyncOperation) error
	GetByID(ctx context.Context, id string) (*models.SyncOperation, error)
	List(ctx context.Context) ([]*models.SyncOperation, error)
}

// WebhookRepository stores webhook registrations.
type WebhookRepository interface {
	Save(ctx context.Context, webhook *models.WebhookRegistration) error
	GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error)
	List(ctx context.Context) ([]*models.WebhookRegistration, error)
	Delete(ctx context.Context, id string) error
}
