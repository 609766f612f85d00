package workflow

import (
	"context"
	"time"

	"github.com/magicians360/pinkflow/pkg/executor"
	"github.com/magicians360/pinkflow/pkg/models"
)

// eligible returns the pending steps to dispatch next. The first unfinished step decides:
// a sequential step runs alone, a parallel step runs together with the parallel steps that
// directly follow it. Nothing is dispatched past a failed step. Alternate steps that were
// not activated are skipped when reached.
func (m *Manager) eligible(wf *models.Workflow) []*models.Step {
	now := m.now()
	head := -1

	for i, step := range wf.Steps {
		if step.Status.IsDone() {
			continue
		}

		if step.Alternate && !step.Activated && step.Status == models.StepStatusPending && !step.IsWaiting() {
			step.Status = models.StepStatusSkipped
			step.CompletedAt = &now

			continue
		}

		head = i

		break
	}

	if head < 0 || wf.Steps[head].Status == models.StepStatusFailed {
		return nil
	}

	if !wf.Steps[head].Parallel {
		if ready(wf.Steps[head]) {
			return []*models.Step{wf.Steps[head]}
		}

		return nil
	}

	var group []*models.Step

	for _, step := range wf.Steps[head:] {
		if !step.Parallel {
			break
		}

		if step.Alternate && !step.Activated && step.Status == models.StepStatusPending && !step.IsWaiting() {
			step.Status = models.StepStatusSkipped
			step.CompletedAt = &now

			continue
		}

		if ready(step) {
			group = append(group, step)
		}
	}

	return group
}

func ready(step *models.Step) bool {
	return step.Status == models.StepStatusPending && !step.IsWaiting()
}

// dispatch hands a step to the executor, or parks it when it waits for input.
func (m *Manager) dispatch(wf *models.Workflow, step *models.Step, tx *txn) {
	now := m.now()

	if step.WaitsForInput() {
		step.WaitingSince = &now

		tx.waits = append(tx.waits, waiting{stepID: step.ID, since: now})
		tx.notify(TransitionStepWaiting, step.ID)

		return
	}

	step.Status = models.StepStatusInProgress
	step.StartedAt = &now
	step.Attempts = 0

	tx.launches = append(tx.launches, launch{step: step.Clone(), previous: wf.Results()})
}

func (m *Manager) launch(workflowID string, l launch) {
	key := stepKey(workflowID, l.step.ID)
	stepCtx, cancel := context.WithCancel(m.ctx)

	m.inflightMu.Lock()
	m.inflight[key] = cancel
	m.inflightMu.Unlock()

	started := m.goAsync(func() {
		defer m.untrack(key)
		defer cancel()

		result := m.executor.Execute(stepCtx, executor.Invocation{
			WorkflowID:      workflowID,
			Step:            *l.step,
			PreviousResults: l.previous,
		})

		m.applyResult(workflowID, l.step.ID, result)
	})
	if !started {
		cancel()
		m.untrack(key)
		m.logger.Warn("Manager is shutting down, step left in progress", "workflow_id", workflowID, "step_id", l.step.ID)
	}
}

// applyResult records an executor outcome. Results for steps that are no longer in
// progress, or for workflows already finished, are logged and dropped.
func (m *Manager) applyResult(workflowID, stepID string, result executor.Result) {
	if m.ctx.Err() != nil {
		m.logger.Warn("Manager stopped, step result not recorded", "workflow_id", workflowID, "step_id", stepID)

		return
	}

	op := "workflow.applyResult"
	logger := m.logger.With("workflow_id", workflowID, "step_id", stepID)

	_, err := m.mutate(context.Background(), op, workflowID, func(wf *models.Workflow, tx *txn) error {
		step, _ := wf.StepByID(stepID)

		if wf.Status.IsTerminal() || step == nil || step.Status != models.StepStatusInProgress {
			logger.Info("Dropping late step result", "workflow_status", wf.Status, "error", result.Err)

			return errNoChange
		}

		step.Attempts = result.Attempts

		if result.Err != nil {
			m.failStep(wf, step, result.Err.Error(), tx)
		} else {
			m.completeStep(wf, step, result.Output, tx)
		}

		return nil
	})
	if err != nil {
		logger.Error("Failed to record step result", "error", err)
	}
}

// abortStep cancels the executor call of a step, if one is running.
func (m *Manager) abortStep(workflowID, stepID string) {
	key := stepKey(workflowID, stepID)

	m.inflightMu.Lock()
	cancel, ok := m.inflight[key]
	delete(m.inflight, key)
	m.inflightMu.Unlock()

	if ok {
		cancel()
	}
}

func (m *Manager) untrack(key string) {
	m.inflightMu.Lock()
	delete(m.inflight, key)
	m.inflightMu.Unlock()
}

func (m *Manager) armTimer(workflowID string, w waiting) {
	if m.userActionTimeout <= 0 {
		return
	}

	key := stepKey(workflowID, w.stepID)

	delay := m.userActionTimeout - m.now().Sub(w.since)
	if delay < 0 {
		delay = 0
	}

	timer := time.AfterFunc(delay, func() {
		m.runTracked(func() {
			m.expireWaiting(workflowID, w.stepID, w.since)
		})
	})

	m.inflightMu.Lock()
	if previous, ok := m.timers[key]; ok {
		previous.Stop()
	}
	m.timers[key] = timer
	m.inflightMu.Unlock()
}

func (m *Manager) stopTimer(workflowID, stepID string) {
	key := stepKey(workflowID, stepID)

	m.inflightMu.Lock()
	timer, ok := m.timers[key]
	delete(m.timers, key)
	m.inflightMu.Unlock()

	if ok {
		timer.Stop()
	}
}

// expireWaiting fails a step still waiting since the given time.
func (m *Manager) expireWaiting(workflowID, stepID string, since time.Time) {
	op := "workflow.expireWaiting"

	_, err := m.mutate(context.Background(), op, workflowID, func(wf *models.Workflow, tx *txn) error {
		step, _ := wf.StepByID(stepID)

		if wf.Status != models.WorkflowStatusActive || step == nil || !step.IsWaiting() || !step.WaitingSince.Equal(since) {
			return errNoChange
		}

		m.logger.Warn("User action timed out", "workflow_id", workflowID, "step_id", stepID, "waiting_since", since)
		m.failStep(wf, step, "user action timed out", tx)

		return nil
	})
	if err != nil {
		m.logger.Error("Failed to expire waiting step", "workflow_id", workflowID, "step_id", stepID, "error", err)
	}
}

func stepKey(workflowID, stepID string) string {
	return workflowID + "/" + stepID
}
