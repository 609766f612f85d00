package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magicians360/pinkflow/pkg/metrics"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/services"
)

// CompensatedByKey is set on the result of a failed step whose onFailure path took over.
const CompensatedByKey = "compensatedBy"

// Advance completes a step that is in progress or waiting for input, then dispatches
// the next eligible steps.
func (m *Manager) Advance(ctx context.Context, id, stepID string, result map[string]any) (*models.Step, error) {
	op := "workflow.Advance"

	wf, err := m.mutate(ctx, op, id, func(wf *models.Workflow, tx *txn) error {
		step, err := resolvableStep(op, wf, stepID)
		if err != nil {
			return err
		}

		m.abortStep(wf.ID, step.ID)
		m.completeStep(wf, step, result, tx)

		return nil
	})
	if err != nil {
		return nil, err
	}

	step, _ := wf.StepByID(stepID)

	return step, nil
}

// Fail marks a step that is in progress or waiting for input as failed. The workflow
// fails unless the step names an onFailure path.
func (m *Manager) Fail(ctx context.Context, id, stepID, reason string) (*models.Step, error) {
	op := "workflow.Fail"

	if reason == "" {
		reason = "step failed"
	}

	wf, err := m.mutate(ctx, op, id, func(wf *models.Workflow, tx *txn) error {
		step, err := resolvableStep(op, wf, stepID)
		if err != nil {
			return err
		}

		m.abortStep(wf.ID, step.ID)
		m.failStep(wf, step, reason, tx)

		return nil
	})
	if err != nil {
		return nil, err
	}

	step, _ := wf.StepByID(stepID)

	return step, nil
}

// Skip marks a pending step as skipped.
func (m *Manager) Skip(ctx context.Context, id, stepID string) (*models.Step, error) {
	op := "workflow.Skip"

	wf, err := m.mutate(ctx, op, id, func(wf *models.Workflow, tx *txn) error {
		if wf.Status.IsTerminal() {
			return services.NewInvalidStateError(op, fmt.Sprintf("workflow %s is %s", wf.ID, wf.Status))
		}

		step, _ := wf.StepByID(stepID)
		if step == nil {
			return services.NewNotFoundError(op, fmt.Sprintf("step %s not found", stepID), nil)
		}

		if step.Status != models.StepStatusPending {
			return services.NewInvalidStateError(op, fmt.Sprintf("step %s is %s, only pending steps can be skipped", step.ID, step.Status))
		}

		m.stopTimer(wf.ID, step.ID)

		now := m.now()
		step.Status = models.StepStatusSkipped
		step.CompletedAt = &now

		m.progress(wf, tx)

		return nil
	})
	if err != nil {
		return nil, err
	}

	step, _ := wf.StepByID(stepID)

	return step, nil
}

// ResumeWaiting completes every waiting step whose awaitEvent pattern matches the event.
// When the event data names a workflowId only that workflow is considered.
func (m *Manager) ResumeWaiting(ctx context.Context, event *models.Event) (int, error) {
	op := "workflow.ResumeWaiting"

	var ids []string

	if workflowID := event.WorkflowID(); workflowID != "" {
		ids = []string{workflowID}
	} else {
		active, err := m.store.List(ctx, persistence.WorkflowFilter{Status: models.WorkflowStatusActive})
		if err != nil {
			return 0, fmt.Errorf("failed to list active workflows: %w", err)
		}

		for _, wf := range active {
			if awaits(wf, event.EventType) {
				ids = append(ids, wf.ID)
			}
		}
	}

	var (
		resumed int
		errs    []error
	)

	for _, id := range ids {
		_, err := m.mutate(ctx, op, id, func(wf *models.Workflow, tx *txn) error {
			if wf.Status != models.WorkflowStatusActive {
				return errNoChange
			}

			var matched []*models.Step

			for _, step := range wf.Steps {
				if step.AwaitEvent != "" && step.IsWaiting() && models.MatchEventType(step.AwaitEvent, event.EventType) {
					matched = append(matched, step)
				}
			}

			if len(matched) == 0 {
				return errNoChange
			}

			// Steps that start waiting as a consequence of this event are left for the next one.
			for _, step := range matched {
				result := make(map[string]any, len(event.Data)+1)
				for k, v := range event.Data {
					result[k] = v
				}

				result["eventId"] = event.ID

				m.completeStep(wf, step, result, tx)
			}

			resumed += len(matched)

			return nil
		})
		if err != nil && !services.IsNotFound(err) {
			errs = append(errs, err)
		}
	}

	return resumed, errors.Join(errs...)
}

func awaits(wf *models.Workflow, eventType string) bool {
	for _, step := range wf.Steps {
		if step.AwaitEvent != "" && step.IsWaiting() && models.MatchEventType(step.AwaitEvent, eventType) {
			return true
		}
	}

	return false
}

// resolvableStep returns the step if a caller may complete or fail it.
func resolvableStep(op string, wf *models.Workflow, stepID string) (*models.Step, error) {
	if wf.Status.IsTerminal() {
		return nil, services.NewInvalidStateError(op, fmt.Sprintf("workflow %s is %s", wf.ID, wf.Status))
	}

	step, _ := wf.StepByID(stepID)
	if step == nil {
		return nil, services.NewNotFoundError(op, fmt.Sprintf("step %s not found", stepID), nil)
	}

	if step.Status != models.StepStatusInProgress && !step.IsWaiting() {
		return nil, services.NewInvalidStateError(op,
			fmt.Sprintf("step %s is %s and not waiting for a result", step.ID, step.Status))
	}

	return step, nil
}

func (m *Manager) completeStep(wf *models.Workflow, step *models.Step, result map[string]any, tx *txn) {
	m.stopTimer(wf.ID, step.ID)

	now := m.now()
	step.Status = models.StepStatusCompleted
	step.Result = result
	step.Error = ""
	step.CompletedAt = &now

	tx.notify(TransitionStepCompleted, step.ID)

	m.progress(wf, tx)
}

func (m *Manager) failStep(wf *models.Workflow, step *models.Step, reason string, tx *txn) {
	m.stopTimer(wf.ID, step.ID)
	markFailed(step, reason, m.now())

	tx.notify(TransitionStepFailed, step.ID)

	if step.OnFailure == "" {
		m.failWorkflow(wf, fmt.Sprintf("step %s failed: %s", step.ID, reason), tx)

		return
	}

	m.compensate(wf, step)
	m.progress(wf, tx)
}

// compensate hands control to the failed step's onFailure target. The failed step is
// recorded as skipped with its error kept, and everything in between is skipped.
func (m *Manager) compensate(wf *models.Workflow, failed *models.Step) {
	target, targetIdx := wf.StepByID(failed.OnFailure)
	_, failedIdx := wf.StepByID(failed.ID)

	failed.Status = models.StepStatusSkipped
	failed.Result = map[string]any{CompensatedByKey: target.ID}

	now := m.now()

	for _, step := range wf.Steps[failedIdx+1 : targetIdx] {
		if step.Status.IsDone() || step.Status == models.StepStatusFailed {
			continue
		}

		m.abortStep(wf.ID, step.ID)
		m.stopTimer(wf.ID, step.ID)

		step.Status = models.StepStatusSkipped
		step.CompletedAt = &now
	}

	target.Activated = true

	m.logger.Info("Following onFailure path", "workflow_id", wf.ID, "failed_step", failed.ID, "target_step", target.ID)
}

// progress dispatches eligible steps of an active workflow and completes it when no step remains.
func (m *Manager) progress(wf *models.Workflow, tx *txn) {
	if wf.Status != models.WorkflowStatusActive {
		return
	}

	for _, step := range m.eligible(wf) {
		m.dispatch(wf, step, tx)
	}

	if wf.AllStepsDone() {
		now := m.now()
		wf.Status = models.WorkflowStatusCompleted
		wf.CompletedAt = &now

		metrics.WorkflowTransitionsTotal.WithLabelValues(string(models.WorkflowStatusCompleted)).Inc()
		tx.notify(TransitionCompleted, "")
	}
}

func (m *Manager) failWorkflow(wf *models.Workflow, reason string, tx *txn) {
	now := m.now()

	for _, step := range wf.Steps {
		switch {
		case step.Status == models.StepStatusInProgress:
			m.abortStep(wf.ID, step.ID)
			markFailed(step, "workflow failed", now)
		case step.IsWaiting():
			m.stopTimer(wf.ID, step.ID)
		}
	}

	wf.Status = models.WorkflowStatusFailed
	wf.Error = reason
	wf.CompletedAt = &now

	metrics.WorkflowTransitionsTotal.WithLabelValues(string(models.WorkflowStatusFailed)).Inc()
	tx.notify(TransitionFailed, "")
}

func markFailed(step *models.Step, reason string, now time.Time) {
	step.Status = models.StepStatusFailed
	step.Error = reason
	step.CompletedAt = &now
}
