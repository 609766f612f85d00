// Package models defines the core domain models for workflow orchestration.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"   // Created, no step dispatched yet
	WorkflowStatusActive    WorkflowStatus = "active"    // At least one step dispatched
	WorkflowStatusCompleted WorkflowStatus = "completed" // Terminal
	WorkflowStatusFailed    WorkflowStatus = "failed"    // Terminal
)

// IsTerminal reports whether no further transition is allowed from the status.
func (s WorkflowStatus) IsTerminal() bool {
	return s == WorkflowStatusCompleted || s == WorkflowStatusFailed
}

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusPending, WorkflowStatusActive, WorkflowStatusCompleted, WorkflowStatusFailed:
		return true
	default:
		return false
	}
}

// Workflow is one stateful instance of an ordered sequence of steps.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      WorkflowStatus `json:"status"`
	Steps       []*Step        `json:"steps"`
	Owner       string         `json:"owner,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// StepByID returns the step with the given id and its position in the sequence.
func (w *Workflow) StepByID(id string) (*Step, int) {
	for i, step := range w.Steps {
		if step.ID == id {
			return step, i
		}
	}

	return nil, -1
}

// AllStepsDone reports whether every step is completed or skipped.
func (w *Workflow) AllStepsDone() bool {
	for _, step := range w.Steps {
		if !step.Status.IsDone() {
			return false
		}
	}

	return true
}

// HasFailedStep reports whether any step ended in failure.
func (w *Workflow) HasFailedStep() bool {
	for _, step := range w.Steps {
		if step.Status == StepStatusFailed {
			return true
		}
	}

	return false
}

// Results collects the results of completed steps keyed by step id.
func (w *Workflow) Results() map[string]any {
	results := make(map[string]any)

	for _, step := range w.Steps {
		if step.Status == StepStatusCompleted && step.Result != nil {
			results[step.ID] = step.Result
		}
	}

	return results
}

// Clone returns a deep copy of the workflow structure. Maps are copied one level deep.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Metadata = copyMap(w.Metadata)
	clone.Steps = make([]*Step, len(w.Steps))

	for i, step := range w.Steps {
		clone.Steps[i] = step.Clone()
	}

	return &clone
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
