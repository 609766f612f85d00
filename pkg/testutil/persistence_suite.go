package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPersistenceSuite exercises the repository contract every backend must honor.
// The store is expected to be empty.
func RunPersistenceSuite(t *testing.T, store persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	t.Run("health check", func(t *testing.T) {
		require.NoError(t, store.HealthCheck(ctx))
	})

	t.Run("workflow round trip", func(t *testing.T) {
		repo := store.WorkflowRepository()

		workflow := CreateTestWorkflow(
			CreateTestStep("step-1"),
			CreateTestStep("step-2", WithUserAction("approve filing")),
		)
		require.NoError(t, repo.Save(ctx, workflow))

		loaded, err := repo.GetByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, workflow.Name, loaded.Name)
		assert.Equal(t, models.WorkflowStatusPending, loaded.Status)
		require.Len(t, loaded.Steps, 2)
		assert.True(t, loaded.Steps[1].IsUserActionRequired)
		assert.Equal(t, "DE", loaded.Steps[0].Parameters["state"])

		loaded.Status = models.WorkflowStatusActive
		loaded.Steps[0].Status = models.StepStatusInProgress
		require.NoError(t, repo.Save(ctx, loaded))

		reloaded, err := repo.GetByID(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusActive, reloaded.Status)
		assert.Equal(t, models.StepStatusInProgress, reloaded.Steps[0].Status)

		active, err := repo.List(ctx, persistence.WorkflowFilter{Status: models.WorkflowStatusActive})
		require.NoError(t, err)
		assert.Len(t, active, 1)

		none, err := repo.List(ctx, persistence.WorkflowFilter{Owner: "someone-else"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("workflow not found", func(t *testing.T) {
		_, err := store.WorkflowRepository().GetByID(ctx, uuid.NewString())
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("event round trip", func(t *testing.T) {
		repo := store.EventRepository()

		event := CreateTestEvent("business.formation.completed")
		require.NoError(t, repo.Save(ctx, event))

		event.ProcessingStatus = models.ProcessingStatusProcessed
		event.ProcessingResult = map[string]any{"webhooksNotified": float64(1)}
		require.NoError(t, repo.Save(ctx, event))

		loaded, err := repo.GetByID(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProcessingStatusProcessed, loaded.ProcessingStatus)
		assert.InDelta(t, 1, loaded.ProcessingResult["webhooksNotified"], 0)

		byType, err := repo.List(ctx, persistence.EventFilter{EventType: "business.formation.completed"})
		require.NoError(t, err)
		assert.Len(t, byType, 1)

		pending, err := repo.List(ctx, persistence.EventFilter{Status: models.ProcessingStatusPending})
		require.NoError(t, err)
		assert.Empty(t, pending)

		_, err = repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, persistence.ErrEventNotFound)
	})

	t.Run("sync operation round trip", func(t *testing.T) {
		repo := store.SyncRepository()
		now := time.Now().UTC().Truncate(time.Millisecond)

		operation := &models.SyncOperation{
			ID:         uuid.NewString(),
			Type:       "business-vr",
			SourceID:   "biz-1",
			TargetID:   "vr-1",
			WorkflowID: uuid.NewString(),
			Status:     models.SyncStatusInProgress,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		require.NoError(t, repo.Save(ctx, operation))

		loaded, err := repo.GetByID(ctx, operation.ID)
		require.NoError(t, err)
		assert.Equal(t, operation.Key(), loaded.Key())
		assert.Equal(t, models.SyncStatusInProgress, loaded.Status)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		_, err = repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, persistence.ErrSyncOperationNotFound)
	})

	t.Run("webhook lifecycle", func(t *testing.T) {
		repo := store.WebhookRepository()

		webhook := CreateTestWebhook("https://example.com/hook", "business.formation.*")
		webhook.Secret = "s3cret"
		require.NoError(t, repo.Save(ctx, webhook))

		loaded, err := repo.GetByID(ctx, webhook.ID)
		require.NoError(t, err)
		assert.Equal(t, "s3cret", loaded.Secret)
		assert.Equal(t, []string{"business.formation.*"}, loaded.Events)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		require.NoError(t, repo.Delete(ctx, webhook.ID))

		_, err = repo.GetByID(ctx, webhook.ID)
		assert.ErrorIs(t, err, persistence.ErrWebhookNotFound)

		err = repo.Delete(ctx, webhook.ID)
		assert.ErrorIs(t, err, persistence.ErrWebhookNotFound)
	})
}
