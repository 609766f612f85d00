package workflow_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/executor"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence/memory"
	"github.com/magicians360/pinkflow/pkg/workflow"
	"github.com/stretchr/testify/require"
)

// manualExecutor blocks every call until its context is cancelled, so tests drive
// step outcomes through Advance and Fail.
type manualExecutor struct {
	mu       sync.Mutex
	calls    []executor.Invocation
	returned int
}

func (e *manualExecutor) Execute(ctx context.Context, inv executor.Invocation) executor.Result {
	e.mu.Lock()
	e.calls = append(e.calls, inv)
	e.mu.Unlock()

	<-ctx.Done()

	e.mu.Lock()
	e.returned++
	e.mu.Unlock()

	return executor.Result{Err: ctx.Err()}
}

func (e *manualExecutor) stepIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.calls))
	for _, call := range e.calls {
		ids = append(ids, call.Step.ID)
	}

	return ids
}

func (e *manualExecutor) returnedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.returned
}

// funcExecutor answers every call with fn.
type funcExecutor struct {
	mu    sync.Mutex
	calls []executor.Invocation
	fn    func(inv executor.Invocation) executor.Result
}

func (e *funcExecutor) Execute(_ context.Context, inv executor.Invocation) executor.Result {
	e.mu.Lock()
	e.calls = append(e.calls, inv)
	e.mu.Unlock()

	return e.fn(inv)
}

func (e *funcExecutor) invocation(stepID string) (executor.Invocation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, call := range e.calls {
		if call.Step.ID == stepID {
			return call, true
		}
	}

	return executor.Invocation{}, false
}

func newManager(t *testing.T, exec workflow.StepExecutor, mods ...func(*config.Config)) *workflow.Manager {
	t.Helper()

	cfg := config.NewDefaultConfig()
	for _, mod := range mods {
		mod(cfg)
	}

	manager := workflow.NewManager(memory.NewPersistence().WorkflowRepository(), exec, cfg, slog.Default())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = manager.Shutdown(ctx)
	})

	return manager
}

func formationRequest() workflow.CreateRequest {
	return workflow.CreateRequest{
		Name:  "Formation",
		Owner: "user-1",
		Steps: []workflow.StepRequest{
			{Service: "northwest", Action: "file", Parameters: map[string]any{"state": "DE"}},
			{Service: "legalshield", Action: "review"},
		},
	}
}

func requireWorkflowStatus(t *testing.T, manager *workflow.Manager, id string, status models.WorkflowStatus) *models.Workflow {
	t.Helper()

	var wf *models.Workflow

	require.Eventually(t, func() bool {
		got, err := manager.Get(context.Background(), id)
		if err != nil {
			return false
		}

		wf = got

		return got.Status == status
	}, 2*time.Second, 5*time.Millisecond, "workflow never reached %s", status)

	return wf
}

func requireStepStatus(t *testing.T, manager *workflow.Manager, id, stepID string, status models.StepStatus) *models.Step {
	t.Helper()

	var step *models.Step

	require.Eventually(t, func() bool {
		wf, err := manager.Get(context.Background(), id)
		if err != nil {
			return false
		}

		step, _ = wf.StepByID(stepID)

		return step != nil && step.Status == status
	}, 2*time.Second, 5*time.Millisecond, "step %s never reached %s", stepID, status)

	return step
}
