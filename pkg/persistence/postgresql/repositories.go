package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// Save upserts a workflow together with its steps.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	document, err := json.Marshal(workflow)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (id, name, status, owner, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			owner = EXCLUDED.owner,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Status,
		workflow.Owner,
		document,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", persistence.KindWorkflow, workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return getDocument[models.Workflow](ctx, r.db, persistence.KindWorkflow,
		"SELECT document FROM workflows WHERE id = $1", id)
}

// List returns workflows matching the filter, oldest first.
func (r *WorkflowRepository) List(ctx context.Context, filter persistence.WorkflowFilter) ([]*models.Workflow, error) {
	query := `
		SELECT document
		FROM workflows
		WHERE ($1::text = '' OR status = $1)
		  AND ($2::text = '' OR owner = $2)
		ORDER BY created_at, id
	`

	return listDocuments[models.Workflow](ctx, r.db, r.logger, persistence.KindWorkflow, query,
		string(filter.Status), filter.Owner)
}

// EventRepository handles event-related database operations.
type EventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *EventRepository) Save(ctx context.Context, event *models.Event) error {
	document, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	query := `
		INSERT INTO events (id, event_type, processing_status, document, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			processing_status = EXCLUDED.processing_status,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, event.ID, event.EventType, event.ProcessingStatus, document, event.Timestamp)
	if err != nil {
		return persistence.NewRecordError("Save", persistence.KindEvent, event.ID, err)
	}

	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	return getDocument[models.Event](ctx, r.db, persistence.KindEvent,
		"SELECT document FROM events WHERE id = $1", id)
}

func (r *EventRepository) List(ctx context.Context, filter persistence.EventFilter) ([]*models.Event, error) {
	query := `
		SELECT document
		FROM events
		WHERE ($1::text = '' OR processing_status = $1)
		  AND ($2::text = '' OR event_type = $2)
		ORDER BY received_at, id
	`

	return listDocuments[models.Event](ctx, r.db, r.logger, persistence.KindEvent, query,
		string(filter.Status), filter.EventType)
}

// SyncRepository handles sync operation database operations.
type SyncRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *SyncRepository) Save(ctx context.Context, operation *models.SyncOperation) error {
	document, err := json.Marshal(operation)
	if err != nil {
		return fmt.Errorf("failed to marshal sync operation %s: %w", operation.ID, err)
	}

	query := `
		INSERT INTO sync_operations (id, sync_type, status, workflow_id, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query,
		operation.ID,
		operation.Type,
		operation.Status,
		operation.WorkflowID,
		document,
		operation.CreatedAt,
	)
	if err != nil {
		return persistence.NewRecordError("Save", persistence.KindSyncOperation, operation.ID, err)
	}

	return nil
}

func (r *SyncRepository) GetByID(ctx context.Context, id string) (*models.SyncOperation, error) {
	return getDocument[models.SyncOperation](ctx, r.db, persistence.KindSyncOperation,
		"SELECT document FROM sync_operations WHERE id = $1", id)
}

func (r *SyncRepository) List(ctx context.Context) ([]*models.SyncOperation, error) {
	return listDocuments[models.SyncOperation](ctx, r.db, r.logger, persistence.KindSyncOperation,
		"SELECT document FROM sync_operations ORDER BY created_at, id")
}

// WebhookRepository handles webhook registration database operations.
type WebhookRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WebhookRepository) Save(ctx context.Context, webhook *models.WebhookRegistration) error {
	document, err := json.Marshal(webhook)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook %s: %w", webhook.ID, err)
	}

	query := `
		INSERT INTO webhooks (id, status, document, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			document = EXCLUDED.document
	`

	_, err = r.db.ExecContext(ctx, query, webhook.ID, webhook.Status, document, webhook.CreatedAt)
	if err != nil {
		return persistence.NewRecordError("Save", persistence.KindWebhook, webhook.ID, err)
	}

	return nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error) {
	return getDocument[models.WebhookRegistration](ctx, r.db, persistence.KindWebhook,
		"SELECT document FROM webhooks WHERE id = $1", id)
}

func (r *WebhookRepository) List(ctx context.Context) ([]*models.WebhookRegistration, error) {
	return listDocuments[models.WebhookRegistration](ctx, r.db, r.logger, persistence.KindWebhook,
		"SELECT document FROM webhooks ORDER BY created_at, id")
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return persistence.NewRecordError("Delete", persistence.KindWebhook, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewRecordError("Delete", persistence.KindWebhook, id, persistence.ErrWebhookNotFound)
	}

	return nil
}
