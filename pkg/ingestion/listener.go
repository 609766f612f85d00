package ingestion

import (
	"context"

	"github.com/magicians360/pinkflow/pkg/coordinator"
	"github.com/magicians360/pinkflow/pkg/events"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/workflow"
)

// WorkflowListener ingests workflow transitions as workflow.* events so webhooks and
// awaiting steps can subscribe to them.
func (q *Queue) WorkflowListener() workflow.Listener {
	return func(ctx context.Context, n workflow.Notification) {
		data := map[string]any{
			"workflowId":   n.Workflow.ID,
			"workflowName": n.Workflow.Name,
			"status":       string(n.Workflow.Status),
		}

		if n.Workflow.Error != "" {
			data["error"] = n.Workflow.Error
		}

		if n.StepID != "" {
			data["stepId"] = n.StepID

			if step, _ := n.Workflow.StepByID(n.StepID); step != nil {
				data["stepStatus"] = string(step.Status)

				if step.Error != "" {
					data["error"] = step.Error
				}
			}
		}

		_, _, err := q.Ingest(ctx, IngestRequest{
			EventType: string(n.Transition),
			Source:    events.SourceEngine,
			Data:      data,
		})
		if err != nil {
			q.logger.ErrorContext(ctx, "Failed to emit workflow event",
				"workflow_id", n.Workflow.ID, "transition", n.Transition, "error", err)
		}
	}
}

// SyncListener ingests finished sync operations as sync.completed or sync.failed events.
func (q *Queue) SyncListener() coordinator.Listener {
	return func(ctx context.Context, operation *models.SyncOperation) {
		eventType := events.SyncCompleted
		if operation.Status == models.SyncStatusFailed {
			eventType = events.SyncFailed
		}

		data := map[string]any{
			"syncId":     operation.ID,
			"syncType":   operation.Type,
			"sourceId":   operation.SourceID,
			"targetId":   operation.TargetID,
			"workflowId": operation.WorkflowID,
			"status":     string(operation.Status),
		}

		if operation.Error != "" {
			data["error"] = operation.Error
		}

		if _, _, err := q.Ingest(ctx, IngestRequest{EventType: eventType, Source: events.SourceEngine, Data: data}); err != nil {
			q.logger.ErrorContext(ctx, "Failed to emit sync event", "sync_id", operation.ID, "error", err)
		}
	}
}
