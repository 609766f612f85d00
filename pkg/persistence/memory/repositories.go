package memory

import (
	"context"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
)

type workflowRepository struct {
	records *collection[models.Workflow]
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return r.records.put(workflow)
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	return r.records.get(id)
}

func (r *workflowRepository) List(_ context.Context, filter persistence.WorkflowFilter) ([]*models.Workflow, error) {
	return r.records.list(filter.Match)
}

type eventRepository struct {
	records *collection[models.Event]
}

func (r *eventRepository) Save(_ context.Context, event *models.Event) error {
	return r.records.put(event)
}

func (r *eventRepository) GetByID(_ context.Context, id string) (*models.Event, error) {
	return r.records.get(id)
}

func (r *eventRepository) List(_ context.Context, filter persistence.EventFilter) ([]*models.Event, error) {
	return r.records.list(filter.Match)
}

type syncRepository struct {
	records *collection[models.SyncOperation]
}

func (r *syncRepository) Save(_ context.Context, operation *models.SyncOperation) error {
	return r.records.put(operation)
}

func (r *syncRepository) GetByID(_ context.Context, id string) (*models.SyncOperation, error) {
	return r.records.get(id)
}

func (r *syncRepository) List(_ context.Context) ([]*models.SyncOperation, error) {
	return r.records.list(nil)
}

type webhookRepository struct {
	records *collection[models.WebhookRegistration]
}

func (r *webhookRepository) Save(_ context.Context, webhook *models.WebhookRegistration) error {
	return r.records.put(webhook)
}

func (r *webhookRepository) GetByID(_ context.Context, id string) (*models.WebhookRegistration, error) {
	return r.records.get(id)
}

func (r *webhookRepository) List(_ context.Context) ([]*models.WebhookRegistration, error) {
	return r.records.list(nil)
}

func (r *webhookRepository) Delete(_ context.Context, id string) error {
	return r.records.delete(id)
}
