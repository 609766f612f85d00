package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/services"
)

// StepRequest describes one step of a workflow to create.
type StepRequest struct {
	ID                    string         `json:"id,omitempty"`
	Name                  string         `json:"name,omitempty"`
	Description           string         `json:"description,omitempty"`
	Service               string         `json:"service" validate:"required"`
	Action                string         `json:"action" validate:"required"`
	Parameters            map[string]any `json:"parameters,omitempty"`
	IsUserActionRequired  bool           `json:"isUserActionRequired,omitempty"`
	UserActionDescription string         `json:"userActionDescription,omitempty"`
	AwaitEvent            string         `json:"awaitEvent,omitempty"`
	Parallel              bool           `json:"parallel,omitempty"`
	OnFailure             string         `json:"onFailure,omitempty"`
	Alternate             bool           `json:"alternate,omitempty"`
}

// CreateRequest describes a workflow to create.
type CreateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Owner       string         `json:"owner,omitempty"`
	Steps       []StepRequest  `json:"steps"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (r CreateRequest) build(op string, now time.Time) (*models.Workflow, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, services.NewValidationError(op, "name is required")
	}

	if len(r.Steps) == 0 {
		return nil, services.NewValidationError(op, "at least one step is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate workflow id: %w", err)
	}

	steps := make([]*models.Step, len(r.Steps))
	positions := make(map[string]int, len(r.Steps))

	for i, req := range r.Steps {
		stepID := req.ID
		if stepID == "" {
			stepID = fmt.Sprintf("step-%d", i+1)
		}

		if req.Service == "" || req.Action == "" {
			return nil, services.NewValidationError(op, fmt.Sprintf("step %s requires service and action", stepID))
		}

		if _, exists := positions[stepID]; exists {
			return nil, services.NewValidationError(op, fmt.Sprintf("duplicate step id %s", stepID))
		}

		if req.AwaitEvent != "" && req.IsUserActionRequired {
			return nil, services.NewValidationError(op, fmt.Sprintf("step %s cannot both await an event and require user action", stepID))
		}

		positions[stepID] = i

		name := req.Name
		if name == "" {
			name = stepID
		}

		steps[i] = &models.Step{
			ID:                    stepID,
			Name:                  name,
			Description:           req.Description,
			Service:               req.Service,
			Action:                req.Action,
			Parameters:            req.Parameters,
			Status:                models.StepStatusPending,
			IsUserActionRequired:  req.IsUserActionRequired,
			UserActionDescription: req.UserActionDescription,
			AwaitEvent:            req.AwaitEvent,
			Parallel:              req.Parallel,
			OnFailure:             req.OnFailure,
			Alternate:             req.Alternate,
		}
	}

	for i, step := range steps {
		if step.OnFailure == "" {
			continue
		}

		target, ok := positions[step.OnFailure]
		if !ok || target <= i {
			return nil, services.NewValidationError(op,
				fmt.Sprintf("step %s: onFailure must name a later step, got %s", step.ID, step.OnFailure))
		}
	}

	return &models.Workflow{
		ID:          id.String(),
		Name:        r.Name,
		Description: r.Description,
		Status:      models.WorkflowStatusPending,
		Steps:       steps,
		Owner:       r.Owner,
		Metadata:    r.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
