package workflow

import (
	"context"
	"fmt"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
)

// Recover resumes active workflows left behind by a previous process. Steps stored
// in_progress are dispatched again, waiting steps get their user-action timers back from
// WaitingSince, and pending steps that are already eligible are dispatched. It returns the
// number of workflows touched.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	op := "workflow.Recover"

	active, err := m.store.List(ctx, persistence.WorkflowFilter{Status: models.WorkflowStatusActive})
	if err != nil {
		return 0, fmt.Errorf("failed to list active workflows: %w", err)
	}

	recovered := 0

	for _, candidate := range active {
		touched := false

		_, err := m.mutate(ctx, op, candidate.ID, func(wf *models.Workflow, tx *txn) error {
			if wf.Status != models.WorkflowStatusActive {
				return errNoChange
			}

			m.resume(wf, tx)

			if len(tx.launches) == 0 && len(tx.waits) == 0 && len(tx.notifications) == 0 {
				return errNoChange
			}

			touched = true

			return nil
		})
		if err != nil {
			return recovered, err
		}

		if touched {
			recovered++
		}
	}

	m.logger.InfoContext(ctx, "Recovered active workflows", "count", recovered)

	return recovered, nil
}

// resume collects the side effects that bring a stored active workflow back to life.
func (m *Manager) resume(wf *models.Workflow, tx *txn) {
	previous := wf.Results()

	for _, step := range wf.Steps {
		switch {
		case step.Status == models.StepStatusInProgress && !m.running(wf.ID, step.ID):
			m.logger.Info("Re-dispatching step", "workflow_id", wf.ID, "step_id", step.ID)

			step.Attempts = 0
			tx.launches = append(tx.launches, launch{step: step.Clone(), previous: previous})
		case step.IsWaiting() && step.WaitingSince != nil:
			tx.waits = append(tx.waits, waiting{stepID: step.ID, since: *step.WaitingSince})
		}
	}

	m.progress(wf, tx)
}

func (m *Manager) running(workflowID, stepID string) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()

	_, ok := m.inflight[stepKey(workflowID, stepID)]

	return ok
}
