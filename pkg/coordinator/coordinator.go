// Package coordinator runs cross-service syncs as two-step workflows, one at a time per
// (type, sourceId, targetId).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/metrics"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/services"
	"github.com/magicians360/pinkflow/pkg/workflow"
)

// Step ids of a sync workflow.
const (
	FetchStepID     = "fetch"
	ReconcileStepID = "reconcile"
)

// Workflow metadata keys linking a sync workflow back to its operation.
const (
	MetadataSyncOperationID = "syncOperationId"
	MetadataSyncType        = "syncType"
)

const syncOwner = "pinkflow-sync"

// WorkflowRunner creates, starts and reads workflows. *workflow.Manager satisfies it.
type WorkflowRunner interface {
	Create(ctx context.Context, req workflow.CreateRequest) (*models.Workflow, error)
	Start(ctx context.Context, id string) (*models.Workflow, error)
	Get(ctx context.Context, id string) (*models.Workflow, error)
}

// Listener observes operations reaching a terminal status.
type Listener func(ctx context.Context, operation *models.SyncOperation)

type Coordinator struct {
	store     persistence.SyncRepository
	workflows WorkflowRunner
	routes    map[string]config.SyncRoute
	logger    *slog.Logger
	now       func() time.Time
	listeners []Listener

	mu       sync.Mutex
	inflight map[string]string
}

func NewCoordinator(store persistence.SyncRepository, workflows WorkflowRunner, routes map[string]config.SyncRoute, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		workflows: workflows,
		routes:    routes,
		logger:    logger.With("module", "sync_coordinator"),
		now:       func() time.Time { return time.Now().UTC() },
		inflight:  make(map[string]string),
	}
}

// AddListener registers a listener for finished operations. Call before the first Sync.
func (c *Coordinator) AddListener(listener Listener) {
	c.listeners = append(c.listeners, listener)
}

// Types lists the configured sync types.
func (c *Coordinator) Types() []string {
	types := make([]string, 0, len(c.routes))
	for name := range c.routes {
		types = append(types, name)
	}

	sort.Strings(types)

	return types
}

// Sync starts a sync, or returns the one already running for the same key.
func (c *Coordinator) Sync(ctx context.Context, syncType, sourceID, targetID string) (*models.SyncOperation, error) {
	op := "coordinator.Sync"

	route, ok := c.routes[syncType]
	if !ok {
		return nil, services.NewValidationError(op, fmt.Sprintf("unknown sync type %q, expected one of %s", syncType, strings.Join(c.Types(), ", ")))
	}

	if strings.TrimSpace(sourceID) == "" || strings.TrimSpace(targetID) == "" {
		return nil, services.NewValidationError(op, "sourceId and targetId are required")
	}

	operation, existing, err := c.reserve(ctx, syncType, sourceID, targetID, route)
	if err != nil {
		return nil, err
	}

	if existing {
		return operation, nil
	}

	logger := c.logger.With("sync_id", operation.ID, "sync_type", syncType, "workflow_id", operation.WorkflowID)

	if _, err := c.workflows.Start(ctx, operation.WorkflowID); err != nil {
		c.finish(ctx, operation.ID, models.SyncStatusFailed, nil, fmt.Sprintf("failed to start workflow: %v", err))

		return nil, fmt.Errorf("failed to start sync workflow: %w", err)
	}

	logger.InfoContext(ctx, "Started sync", "source_id", sourceID, "target_id", targetID)

	return c.Get(ctx, operation.ID)
}

// reserve returns the in-flight operation for the key, or creates the operation and its
// workflow while holding the key.
func (c *Coordinator) reserve(ctx context.Context, syncType, sourceID, targetID string, route config.SyncRoute) (*models.SyncOperation, bool, error) {
	key := models.SyncKey(syncType, sourceID, targetID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.inflight[key]; ok {
		operation, err := c.store.GetByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load in-flight sync %s: %w", id, err)
		}

		if !operation.Status.IsTerminal() {
			c.logger.DebugContext(ctx, "Sync already in flight", "sync_id", id, "key", key)

			return operation, true, nil
		}

		delete(c.inflight, key)
	}

	now := c.now()
	operation := &models.SyncOperation{
		ID:        uuid.NewString(),
		Type:      syncType,
		SourceID:  sourceID,
		TargetID:  targetID,
		Status:    models.SyncStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	wf, err := c.workflows.Create(ctx, syncWorkflow(operation, route))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create sync workflow: %w", err)
	}

	operation.WorkflowID = wf.ID

	if err := c.store.Save(ctx, operation); err != nil {
		return nil, false, fmt.Errorf("failed to save sync operation: %w", err)
	}

	c.inflight[key] = operation.ID
	metrics.SyncOperationsTotal.WithLabelValues(syncType, string(models.SyncStatusPending)).Inc()

	return operation, false, nil
}

func syncWorkflow(operation *models.SyncOperation, route config.SyncRoute) workflow.CreateRequest {
	return workflow.CreateRequest{
		Name:        "sync:" + operation.Type,
		Description: fmt.Sprintf("Sync %s into %s", operation.SourceID, operation.TargetID),
		Owner:       syncOwner,
		Metadata: map[string]any{
			MetadataSyncOperationID: operation.ID,
			MetadataSyncType:        operation.Type,
		},
		Steps: []workflow.StepRequest{
			{
				ID:      FetchStepID,
				Name:    "Fetch from " + route.Source.Service,
				Service: route.Source.Service,
				Action:  route.Source.Action,
				Parameters: map[string]any{
					"sourceId": operation.SourceID,
					"syncType": operation.Type,
				},
			},
			{
				ID:      ReconcileStepID,
				Name:    "Reconcile into " + route.Target.Service,
				Service: route.Target.Service,
				Action:  route.Target.Action,
				Parameters: map[string]any{
					"sourceId": operation.SourceID,
					"targetId": operation.TargetID,
					"syncType": operation.Type,
				},
			},
		},
	}
}

func (c *Coordinator) Get(ctx context.Context, id string) (*models.SyncOperation, error) {
	operation, err := c.store.GetByID(ctx, id)
	if persistence.IsNotFound(err) {
		return nil, services.NewNotFoundError("coordinator.Get", "sync operation "+id+" not found", err)
	}

	return operation, err
}

// Recover rebuilds the in-flight keys from stored operations that have not finished and
// brings each of them in line with its workflow: operations whose workflow already ended
// are finished, and pending ones whose workflow never started are started. Call it after
// the workflow manager has recovered.
func (c *Coordinator) Recover(ctx context.Context) error {
	operations, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sync operations: %w", err)
	}

	var open []*models.SyncOperation

	c.mu.Lock()
	for _, operation := range operations {
		if !operation.Status.IsTerminal() {
			c.inflight[operation.Key()] = operation.ID
			open = append(open, operation)
		}
	}
	c.mu.Unlock()

	for _, operation := range open {
		c.reconcile(ctx, operation)
	}

	c.logger.InfoContext(ctx, "Recovered in-flight syncs", "count", len(open))

	return nil
}

func (c *Coordinator) reconcile(ctx context.Context, operation *models.SyncOperation) {
	logger := c.logger.With("sync_id", operation.ID, "workflow_id", operation.WorkflowID)

	wf, err := c.workflows.Get(ctx, operation.WorkflowID)
	if err != nil {
		if services.IsNotFound(err) {
			c.finish(ctx, operation.ID, models.SyncStatusFailed, nil, "sync workflow not found")

			return
		}

		logger.ErrorContext(ctx, "Failed to load sync workflow", "error", err)

		return
	}

	switch wf.Status {
	case models.WorkflowStatusCompleted:
		var synced map[string]any
		if step, _ := wf.StepByID(ReconcileStepID); step != nil {
			synced = step.Result
		}

		c.finish(ctx, operation.ID, models.SyncStatusCompleted, synced, "")
	case models.WorkflowStatusFailed:
		c.finish(ctx, operation.ID, models.SyncStatusFailed, nil, failureReason(wf))
	case models.WorkflowStatusActive:
		c.finish(ctx, operation.ID, models.SyncStatusInProgress, nil, "")
	case models.WorkflowStatusPending:
		if _, err := c.workflows.Start(ctx, wf.ID); err != nil && !services.IsInvalidState(err) {
			c.finish(ctx, operation.ID, models.SyncStatusFailed, nil, fmt.Sprintf("failed to start workflow: %v", err))
		}
	}
}

// WorkflowListener keeps sync operations in step with their workflows.
func (c *Coordinator) WorkflowListener() workflow.Listener {
	return func(ctx context.Context, n workflow.Notification) {
		id, _ := n.Workflow.Metadata[MetadataSyncOperationID].(string)
		if id == "" {
			return
		}

		switch n.Transition {
		case workflow.TransitionStarted:
			c.finish(ctx, id, models.SyncStatusInProgress, nil, "")
		case workflow.TransitionCompleted:
			var synced map[string]any
			if step, _ := n.Workflow.StepByID(ReconcileStepID); step != nil {
				synced = step.Result
			}

			c.finish(ctx, id, models.SyncStatusCompleted, synced, "")
		case workflow.TransitionFailed:
			c.finish(ctx, id, models.SyncStatusFailed, nil, failureReason(n.Workflow))
		}
	}
}

func failureReason(wf *models.Workflow) string {
	for _, step := range wf.Steps {
		if step.Status == models.StepStatusFailed && step.Error != "" && step.Error != "workflow failed" {
			return fmt.Sprintf("%s: %s", step.ID, step.Error)
		}
	}

	return wf.Error
}

// finish moves an operation to status. Terminal operations are never changed again.
func (c *Coordinator) finish(ctx context.Context, id string, status models.SyncStatus, synced map[string]any, reason string) {
	logger := c.logger.With("sync_id", id)

	operation, err := c.store.GetByID(ctx, id)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load sync operation", "error", err)

		return
	}

	if operation.Status.IsTerminal() || operation.Status == status {
		return
	}

	now := c.now()
	operation.Status = status
	operation.UpdatedAt = now

	switch status {
	case models.SyncStatusCompleted:
		operation.SyncedData = synced
		operation.SyncedAt = &now
	case models.SyncStatusFailed:
		operation.Error = reason
	}

	if err := c.store.Save(ctx, operation); err != nil {
		logger.ErrorContext(ctx, "Failed to save sync operation", "status", status, "error", err)

		return
	}

	metrics.SyncOperationsTotal.WithLabelValues(operation.Type, string(status)).Inc()

	if status.IsTerminal() {
		c.release(operation)
		logger.InfoContext(ctx, "Sync finished", "status", status, "error", operation.Error)

		for _, listener := range c.listeners {
			listener(ctx, operation)
		}
	}
}

func (c *Coordinator) release(operation *models.SyncOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := operation.Key()
	if c.inflight[key] == operation.ID {
		delete(c.inflight, key)
	}
}
