package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/coordinator"
	"github.com/magicians360/pinkflow/pkg/events"
	"github.com/magicians360/pinkflow/pkg/ingestion"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/webhooks"
	"github.com/magicians360/pinkflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEngine(t *testing.T, opts EngineOptions) *Engine {
	t.Helper()

	ctx := context.Background()

	engine, err := NewEngine(ctx, slog.Default(), opts)
	require.NoError(t, err)
	require.NoError(t, engine.Start(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		assert.NoError(t, engine.Shutdown(ctx))
	})

	return engine
}

func TestEngineRunsFullSync(t *testing.T) {
	t.Parallel()

	engine := startEngine(t, EngineOptions{})
	ctx := context.Background()

	operation, err := engine.Coordinator.Sync(ctx, config.SyncTypeFull, "biz-1", "rec-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := engine.Coordinator.Get(ctx, operation.ID)

		return err == nil && current.Status == models.SyncStatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	current, err := engine.Coordinator.Get(ctx, operation.ID)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", current.SyncedData["targetId"])
	assert.NotNil(t, current.SyncedAt)

	// Transitions are published as events and dispatched like any other.
	require.Eventually(t, func() bool {
		list, err := engine.Events.List(ctx, persistence.EventFilter{
			EventType: events.SyncCompleted,
			Status:    models.ProcessingStatusProcessed,
		})

		return err == nil && len(list) == 1
	}, 3*time.Second, 10*time.Millisecond)

	var completed []*models.Event

	require.Eventually(t, func() bool {
		completed, err = engine.Events.List(ctx, persistence.EventFilter{EventType: events.WorkflowCompleted})

		return err == nil && len(completed) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, operation.WorkflowID, completed[0].Data["workflowId"])
}

func TestEngineAppliesServicesFile(t *testing.T) {
	t.Parallel()

	servicesFile := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(servicesFile, []byte(`
services:
  - name: crm
    adapter: internal
    integration: internal
    actions: [fetch, reconcile]
sync_routes:
  crm:
    source: {service: crm, action: fetch}
    target: {service: internal, action: reconcile}
auto_sync:
  - type: crm
    source_id: account-1
    target_id: account-2
    schedule: "@every 1s"
`), 0o600))

	engine := startEngine(t, EngineOptions{ServicesFile: servicesFile})
	ctx := context.Background()

	assert.Contains(t, engine.Coordinator.Types(), "crm")
	assert.Equal(t, 1, engine.Scheduler.Len())

	_, ok := engine.Registry.Lookup("crm")
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		operations, err := engine.Store.SyncRepository().List(ctx)
		if err != nil {
			return false
		}

		for _, operation := range operations {
			if operation.Type == "crm" && operation.Status == models.SyncStatusCompleted {
				return true
			}
		}

		return false
	}, 5*time.Second, 50*time.Millisecond, "auto sync never completed")
}

func TestNewEngineRejectsBadServicesFile(t *testing.T) {
	t.Parallel()

	servicesFile := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(servicesFile, []byte("services:\n  - name: crm\n"), 0o600))

	_, err := NewEngine(context.Background(), slog.Default(), EngineOptions{ServicesFile: servicesFile})
	assert.ErrorIs(t, err, config.ErrInvalidServicesFile)

	_, err = NewEngine(context.Background(), slog.Default(), EngineOptions{ServicesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestEngineResumesSyncLeftInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	databaseURL := "file://" + t.TempDir()
	now := time.Now().UTC()

	seed, err := NewPersistence(ctx, slog.Default(), databaseURL)
	require.NoError(t, err)

	// State as a process killed mid-fetch leaves it.
	wf := &models.Workflow{
		ID:        "wf-interrupted",
		Name:      "sync:" + config.SyncTypeFull,
		Status:    models.WorkflowStatusActive,
		Owner:     "pinkflow-sync",
		Metadata:  map[string]any{coordinator.MetadataSyncOperationID: "sync-interrupted"},
		CreatedAt: now,
		UpdatedAt: now,
		StartedAt: &now,
		Steps: []*models.Step{
			{
				ID:         coordinator.FetchStepID,
				Service:    InternalService,
				Action:     "fetch",
				Parameters: map[string]any{"sourceId": "biz-7", "syncType": config.SyncTypeFull},
				Status:     models.StepStatusInProgress,
				StartedAt:  &now,
			},
			{
				ID:         coordinator.ReconcileStepID,
				Service:    InternalService,
				Action:     "reconcile",
				Parameters: map[string]any{"sourceId": "biz-7", "targetId": "rec-7", "syncType": config.SyncTypeFull},
				Status:     models.StepStatusPending,
			},
		},
	}
	require.NoError(t, seed.WorkflowRepository().Save(ctx, wf))

	require.NoError(t, seed.SyncRepository().Save(ctx, &models.SyncOperation{
		ID:         "sync-interrupted",
		Type:       config.SyncTypeFull,
		SourceID:   "biz-7",
		TargetID:   "rec-7",
		WorkflowID: wf.ID,
		Status:     models.SyncStatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
	require.NoError(t, seed.Close(ctx))

	engine := startEngine(t, EngineOptions{DatabaseURL: databaseURL})

	require.Eventually(t, func() bool {
		current, err := engine.Coordinator.Get(ctx, "sync-interrupted")

		return err == nil && current.Status == models.SyncStatusCompleted
	}, 3*time.Second, 10*time.Millisecond)

	again, err := engine.Coordinator.Sync(ctx, config.SyncTypeFull, "biz-7", "rec-7")
	require.NoError(t, err)
	assert.NotEqual(t, "sync-interrupted", again.ID)
}

func TestEngineSlowWebhookDoesNotDelayResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	release := make(chan struct{})

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}

		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(slow.Close)

	cfg := config.NewDefaultConfig()
	cfg.WebhookTimeout = 2 * time.Second
	cfg.WebhookRetry.MaxAttempts = 1

	engine := startEngine(t, EngineOptions{Config: cfg})
	t.Cleanup(func() { close(release) })

	_, err := engine.Webhooks.Register(ctx, webhooks.RegisterRequest{URL: slow.URL, Events: []string{"business.formation.*"}})
	require.NoError(t, err)

	wf, err := engine.Workflows.Create(ctx, workflow.CreateRequest{
		Name:  "Captioning",
		Steps: []workflow.StepRequest{{ID: "captions", Service: InternalService, Action: "echo", AwaitEvent: "video.*"}},
	})
	require.NoError(t, err)

	_, err = engine.Workflows.Start(ctx, wf.ID)
	require.NoError(t, err)

	_, _, err = engine.Events.Ingest(ctx, ingestion.IngestRequest{EventType: "business.formation.completed", Source: "northwest"})
	require.NoError(t, err)

	_, _, err = engine.Events.Ingest(ctx, ingestion.IngestRequest{
		EventType: "video.processed",
		Source:    "video",
		Data:      map[string]any{"workflowId": wf.ID},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := engine.Workflows.Get(ctx, wf.ID)

		return err == nil && current.Status == models.WorkflowStatusCompleted
	}, time.Second, 10*time.Millisecond, "awaiting step was held back by a slow webhook")
}
