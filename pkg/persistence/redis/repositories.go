package redis

import (
	"context"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
)

type workflowRepository struct {
	records *records[models.Workflow]
}

func (r *workflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	return r.records.save(ctx, workflow)
}

func (r *workflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.records.get(ctx, id)
}

func (r *workflowRepository) List(ctx context.Context, filter persistence.WorkflowFilter) ([]*models.Workflow, error) {
	return r.records.list(ctx, filter.Match)
}

type eventRepository struct {
	records *records[models.Event]
}

func (r *eventRepository) Save(ctx context.Context, event *models.Event) error {
	return r.records.save(ctx, event)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return r.records.get(ctx, id)
}

func (r *eventRepository) List(ctx context.Context, filter persistence.EventFilter) ([]*models.Event, error) {
	return r.records.list(ctx, filter.Match)
}

type syncRepository struct {
	records *records[models.SyncOperation]
}

func (r *syncRepository) Save(ctx context.Context, operation *models.SyncOperation) error {
	return r.records.save(ctx, operation)
}

func (r *syncRepository) GetByID(ctx context.Context, id string) (*models.SyncOperation, error) {
	return r.records.get(ctx, id)
}

func (r *syncRepository) List(ctx context.Context) ([]*models.SyncOperation, error) {
	return r.records.list(ctx, nil)
}

type webhookRepository struct {
	records *records[models.WebhookRegistration]
}

func (r *webhookRepository) Save(ctx context.Context, webhook *models.WebhookRegistration) error {
	return r.records.save(ctx, webhook)
}

func (r *webhookRepository) GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error) {
	return r.records.get(ctx, id)
}

func (r *webhookRepository) List(ctx context.Context) ([]*models.WebhookRegistration, error) {
	return r.records.list(ctx, nil)
}

func (r *webhookRepository) Delete(ctx context.Context, id string) error {
	return r.records.delete(ctx, id)
}
