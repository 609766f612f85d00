package models

import "time"

// StepStatus represents the execution state of a single step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// IsDone reports whether the step no longer blocks workflow completion.
func (s StepStatus) IsDone() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// Step is one delegated unit of work against a named external service.
type Step struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Description           string         `json:"description,omitempty"`
	Service               string         `json:"service"`
	Action                string         `json:"action"`
	Parameters            map[string]any `json:"parameters,omitempty"`
	Status                StepStatus     `json:"status"`
	Result                map[string]any `json:"result,omitempty"`
	Error                 string         `json:"error,omitempty"`
	Attempts              int            `json:"attempts,omitempty"`
	IsUserActionRequired  bool           `json:"isUserActionRequired,omitempty"`
	UserActionDescription string         `json:"userActionDescription,omitempty"`

	// AwaitEvent makes the step wait for an ingested event whose type matches the pattern.
	AwaitEvent string `json:"awaitEvent,omitempty"`
	// Parallel steps adjacent to each other are dispatched together.
	Parallel bool `json:"parallel,omitempty"`
	// OnFailure names a later step that takes over when this step fails.
	OnFailure string `json:"onFailure,omitempty"`
	// Alternate steps only run when activated through another step's OnFailure.
	Alternate bool `json:"alternate,omitempty"`
	Activated bool `json:"activated,omitempty"`

	WaitingSince *time.Time `json:"waitingSince,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// WaitsForInput reports whether the step is resolved by an external caller or event
// instead of the step executor.
func (s *Step) WaitsForInput() bool {
	return s.IsUserActionRequired || s.AwaitEvent != ""
}

// IsWaiting reports whether the step is currently blocked on external input.
func (s *Step) IsWaiting() bool {
	return s.Status == StepStatusPending && s.WaitingSince != nil
}

// Clone returns a copy of the step with its maps copied.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	clone := *s
	clone.Parameters = copyMap(s.Parameters)
	clone.Result = copyMap(s.Result)

	return &clone
}
