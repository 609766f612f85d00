package memory_test

import (
	"context"
	"testing"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/persistence/memory"
	"github.com/magicians360/pinkflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_Contract(t *testing.T) {
	t.Parallel()

	testutil.RunPersistenceSuite(t, memory.NewPersistence())
}

func TestPersistence_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewPersistence().WorkflowRepository()

	workflow := testutil.CreateTestWorkflow(testutil.CreateTestStep("step-1"))
	require.NoError(t, repo.Save(ctx, workflow))

	workflow.Steps[0].Status = models.StepStatusFailed

	loaded, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusPending, loaded.Steps[0].Status)

	loaded.Name = "mutated"

	again, err := repo.GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Workflow", again.Name)
}

func TestPersistence_ListKeepsInsertionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewPersistence().EventRepository()

	first := testutil.CreateTestEvent("video.uploaded")
	second := testutil.CreateTestEvent("video.processed")

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, first))

	events, err := repo.List(ctx, persistence.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
}
