package workflow_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/services"
	"github.com/magicians360/pinkflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentAdvanceAcceptsOneTransition(t *testing.T) {
	t.Parallel()

	manager := newManager(t, &manualExecutor{})
	ctx := context.Background()

	wf, err := manager.Create(ctx, workflow.CreateRequest{
		Name: "Approval",
		Steps: []workflow.StepRequest{
			{ID: "approve", Service: "internal", Action: "echo", IsUserActionRequired: true},
			{ID: "after", Service: "internal", Action: "echo", IsUserActionRequired: true},
		},
	})
	require.NoError(t, err)

	_, err = manager.Start(ctx, wf.ID)
	require.NoError(t, err)

	const callers = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := manager.Advance(ctx, wf.ID, "approve", map[string]any{"caller": i})

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				accepted++
			case services.IsInvalidState(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, callers-1, rejected)

	current, err := manager.Get(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepStatusCompleted, current.Steps[0].Status)
	assert.True(t, current.Steps[1].IsWaiting())
}

// TestStatusInvariantOverRandomOutcomes drives randomly shaped workflows through random
// step outcomes and checks the status invariants after every transition.
func TestStatusInvariantOverRandomOutcomes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	manager := newManager(t, &manualExecutor{})
	ctx := context.Background()

	for run := range 200 {
		req := randomRequest(rng, run)

		wf, err := manager.Create(ctx, req)
		require.NoError(t, err)

		current, err := manager.Start(ctx, wf.ID)
		require.NoError(t, err)
		assertStatusInvariant(t, current)

		for transitions := 0; !current.Status.IsTerminal(); transitions++ {
			require.Less(t, transitions, 100, "workflow %d did not terminate", run)

			var waitingSteps []*models.Step

			for _, step := range current.Steps {
				if step.IsWaiting() {
					waitingSteps = append(waitingSteps, step)
				}
			}

			require.NotEmpty(t, waitingSteps, "active workflow %d has nothing to resolve", run)

			step := waitingSteps[rng.Intn(len(waitingSteps))]

			switch rng.Intn(3) {
			case 0:
				_, err = manager.Advance(ctx, wf.ID, step.ID, map[string]any{"run": run})
			case 1:
				_, err = manager.Fail(ctx, wf.ID, step.ID, "random failure")
			default:
				_, err = manager.Skip(ctx, wf.ID, step.ID)
			}

			require.NoError(t, err)

			current, err = manager.Get(ctx, wf.ID)
			require.NoError(t, err)
			assertStatusInvariant(t, current)
		}
	}
}

func randomRequest(rng *rand.Rand, run int) workflow.CreateRequest {
	count := 1 + rng.Intn(6)
	steps := make([]workflow.StepRequest, count)

	for i := range steps {
		steps[i] = workflow.StepRequest{
			ID:                   fmt.Sprintf("s%d", i),
			Service:              "internal",
			Action:               "echo",
			IsUserActionRequired: true,
			Parallel:             rng.Intn(3) == 0,
		}
	}

	for i := range steps {
		if i < count-1 && rng.Intn(4) == 0 {
			target := i + 1 + rng.Intn(count-i-1)
			steps[i].OnFailure = steps[target].ID
			steps[target].Alternate = rng.Intn(2) == 0
		}
	}

	return workflow.CreateRequest{Name: fmt.Sprintf("random-%d", run), Steps: steps}
}

func assertStatusInvariant(t *testing.T, wf *models.Workflow) {
	t.Helper()

	switch wf.Status {
	case models.WorkflowStatusCompleted:
		assert.True(t, wf.AllStepsDone(), "completed workflow with unfinished steps")
		assert.False(t, wf.HasFailedStep(), "completed workflow with failed step")
	case models.WorkflowStatusFailed:
		assert.True(t, wf.HasFailedStep(), "failed workflow without failed step")
	default:
		assert.False(t, wf.AllStepsDone(), "%s workflow with every step done", wf.Status)
		assert.False(t, wf.HasFailedStep(), "%s workflow with failed step", wf.Status)
	}
}
