// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/models"
)

// CreateTestStep creates a pending test Step with default values that can be overridden.
func CreateTestStep(id string, overrides ...func(*models.Step)) *models.Step {
	step := &models.Step{
		ID:         id,
		Name:       "Test Step " + id,
		Service:    "northwest",
		Action:     "file",
		Parameters: map[string]any{"state": "DE"},
		Status:     models.StepStatusPending,
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithService sets the step service and action.
func WithService(service, action string) func(*models.Step) {
	return func(s *models.Step) {
		s.Service = service
		s.Action = action
	}
}

// WithStatus sets the step status.
func WithStatus(status models.StepStatus) func(*models.Step) {
	return func(s *models.Step) {
		s.Status = status
	}
}

// WithUserAction marks the step as requiring user input.
func WithUserAction(description string) func(*models.Step) {
	return func(s *models.Step) {
		s.IsUserActionRequired = true
		s.UserActionDescription = description
	}
}

// WithParallel marks the step parallel-eligible.
func WithParallel() func(*models.Step) {
	return func(s *models.Step) {
		s.Parallel = true
	}
}

// CreateTestWorkflow creates a pending test workflow with the given steps.
func CreateTestWorkflow(steps ...*models.Step) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return &models.Workflow{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Status:      models.WorkflowStatusPending,
		Owner:       "test-user",
		Metadata:    map[string]any{"category": "test"},
		Steps:       steps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateTestEvent creates a pending test event.
func CreateTestEvent(eventType string) *models.Event {
	return &models.Event{
		ID:               uuid.New().String(),
		EventType:        eventType,
		Source:           "test",
		Data:             map[string]any{"businessId": "biz-1"},
		Timestamp:        time.Now().UTC().Truncate(time.Millisecond),
		ProcessingStatus: models.ProcessingStatusPending,
	}
}

// CreateTestWebhook creates an active webhook registration.
func CreateTestWebhook(url string, events ...string) *models.WebhookRegistration {
	return &models.WebhookRegistration{
		ID:        uuid.New().String(),
		URL:       url,
		Events:    events,
		Status:    models.WebhookStatusActive,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}
