package workflow_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/executor"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/persistence/memory"
	"github.com/magicians360/pinkflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// restart stops manager without waiting for its executor calls, leaving their steps
// in_progress in the store.
func restart(t *testing.T, manager *workflow.Manager) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	require.ErrorIs(t, manager.Shutdown(ctx), context.DeadlineExceeded)
}

func newManagerOn(t *testing.T, store persistence.WorkflowRepository, exec workflow.StepExecutor, cfg *config.Config) *workflow.Manager {
	t.Helper()

	manager := workflow.NewManager(store, exec, cfg, slog.Default())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = manager.Shutdown(ctx)
	})

	return manager
}

func TestRecover_RedispatchesInProgressSteps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewPersistence().WorkflowRepository()
	cfg := config.NewDefaultConfig()

	blocked := &manualExecutor{}
	first := newManagerOn(t, store, blocked, cfg)

	wf, err := first.Create(ctx, formationRequest())
	require.NoError(t, err)

	_, err = first.Start(ctx, wf.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(blocked.stepIDs()) == 1 }, 2*time.Second, 5*time.Millisecond)

	restart(t, first)

	stored, err := store.GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusInProgress, stored.Steps[0].Status)

	resumed := &funcExecutor{fn: func(inv executor.Invocation) executor.Result {
		return executor.Result{Attempts: 1, Output: map[string]any{"done": inv.Step.ID}}
	}}
	second := newManagerOn(t, store, resumed, cfg)

	recovered, err := second.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	done := requireWorkflowStatus(t, second, wf.ID, models.WorkflowStatusCompleted)
	assert.Equal(t, "step-1", done.Steps[0].Result["done"])

	_, ok := resumed.invocation("step-2")
	assert.True(t, ok, "the next step runs after the recovered one")
}

func TestRecover_RearmsUserActionTimers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewPersistence().WorkflowRepository()

	cfg := config.NewDefaultConfig()
	cfg.UserActionTimeout = time.Hour

	first := newManagerOn(t, store, &manualExecutor{}, cfg)

	wf, err := first.Create(ctx, workflow.CreateRequest{
		Name:  "Consent",
		Steps: []workflow.StepRequest{{ID: "consent", Service: "internal", Action: "echo", IsUserActionRequired: true}},
	})
	require.NoError(t, err)

	_, err = first.Start(ctx, wf.ID)
	require.NoError(t, err)

	requireStepStatus(t, first, wf.ID, "consent", models.StepStatusPending)
	require.NoError(t, first.Shutdown(ctx))

	short := config.NewDefaultConfig()
	short.UserActionTimeout = 50 * time.Millisecond

	second := newManagerOn(t, store, &manualExecutor{}, short)

	recovered, err := second.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	step := requireStepStatus(t, second, wf.ID, "consent", models.StepStatusFailed)
	assert.Equal(t, "user action timed out", step.Error)
	requireWorkflowStatus(t, second, wf.ID, models.WorkflowStatusFailed)
}

func TestRecover_IgnoresFinishedAndRunningWorkflows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	exec := &manualExecutor{}
	manager := newManager(t, exec)

	running, err := manager.Create(ctx, formationRequest())
	require.NoError(t, err)

	_, err = manager.Start(ctx, running.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(exec.stepIDs()) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = manager.Create(ctx, formationRequest())
	require.NoError(t, err)

	recovered, err := manager.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, recovered)
	assert.Len(t, exec.stepIDs(), 1, "a step already running here is not dispatched twice")
}
