package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchEventType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern   string
		eventType string
		expected  bool
	}{
		{"*", "video.uploaded", true},
		{"video.uploaded", "video.uploaded", true},
		{"video.uploaded", "video.processed", false},
		{"business.formation.*", "business.formation.completed", true},
		{"business.*", "business.formation.completed", true},
		{"business.*", "business", false},
		{"business.*", "business.", false},
		{"business.*", "businessx.formation", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.eventType, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, MatchEventType(tt.pattern, tt.eventType))
		})
	}
}

func TestWebhookRegistration_Matches(t *testing.T) {
	t.Parallel()

	registration := &WebhookRegistration{
		ID:     "wh-1",
		Events: []string{"sync.*", "video.uploaded"},
		Secret: "s3cret",
		Status: WebhookStatusActive,
	}

	assert.True(t, registration.Matches("sync.completed"))
	assert.True(t, registration.Matches("video.uploaded"))
	assert.False(t, registration.Matches("video.processed"))

	redacted := registration.Redacted()
	assert.Empty(t, redacted.Secret)
	assert.Equal(t, "s3cret", registration.Secret)

	redacted.Events[0] = "changed"
	assert.Equal(t, "sync.*", registration.Events[0])

	registration.Status = WebhookStatusInactive
	assert.False(t, registration.Matches("sync.completed"))
}

func TestWorkflow_StepQueries(t *testing.T) {
	t.Parallel()

	now := time.Now()
	wf := &Workflow{
		Steps: []*Step{
			{ID: "file", Status: StepStatusCompleted, Result: map[string]any{"filingId": "F-1"}},
			{ID: "review", Status: StepStatusPending, IsUserActionRequired: true, WaitingSince: &now},
			{ID: "notify", Status: StepStatusSkipped},
		},
	}

	step, index := wf.StepByID("review")
	require.NotNil(t, step)
	assert.Equal(t, 1, index)
	assert.True(t, step.WaitsForInput())
	assert.True(t, step.IsWaiting())

	step, index = wf.StepByID("missing")
	assert.Nil(t, step)
	assert.Equal(t, -1, index)

	assert.False(t, wf.AllStepsDone())
	assert.False(t, wf.HasFailedStep())
	assert.Equal(t, map[string]any{"file": map[string]any{"filingId": "F-1"}}, wf.Results())

	wf.Steps[1].Status = StepStatusFailed
	assert.True(t, wf.HasFailedStep())

	wf.Steps[1].Status = StepStatusCompleted
	assert.True(t, wf.AllStepsDone())
}

func TestWorkflow_Clone(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		ID:       "wf-1",
		Metadata: map[string]any{"syncOperationId": "sync-1"},
		Steps:    []*Step{{ID: "fetch", Parameters: map[string]any{"sourceId": "biz-1"}}},
	}

	clone := wf.Clone()
	clone.Metadata["syncOperationId"] = "other"
	clone.Steps[0].Parameters["sourceId"] = "other"
	clone.Steps[0].Status = StepStatusCompleted

	assert.Equal(t, "sync-1", wf.Metadata["syncOperationId"])
	assert.Equal(t, "biz-1", wf.Steps[0].Parameters["sourceId"])
	assert.Empty(t, wf.Steps[0].Status)

	var nilWorkflow *Workflow
	assert.Nil(t, nilWorkflow.Clone())
}

func TestStatuses(t *testing.T) {
	t.Parallel()

	assert.True(t, WorkflowStatusCompleted.IsTerminal())
	assert.True(t, WorkflowStatusFailed.IsTerminal())
	assert.False(t, WorkflowStatusActive.IsTerminal())
	assert.False(t, WorkflowStatus("paused").Valid())

	assert.True(t, StepStatusSkipped.IsDone())
	assert.False(t, StepStatusFailed.IsDone())
	assert.True(t, StepStatusInProgress.Valid())

	assert.True(t, ProcessingStatusProcessed.Valid())
	assert.False(t, ProcessingStatus("lost").Valid())

	assert.Equal(t, SyncStatusInProgress, SyncStatusFor(WorkflowStatusActive))
	assert.Equal(t, SyncStatusCompleted, SyncStatusFor(WorkflowStatusCompleted))
	assert.Equal(t, SyncStatusFailed, SyncStatusFor(WorkflowStatusFailed))
	assert.Equal(t, SyncStatusPending, SyncStatusFor(WorkflowStatusPending))
	assert.Equal(t, "full|biz-1|rec-1", (&SyncOperation{Type: "full", SourceID: "biz-1", TargetID: "rec-1"}).Key())
}

func TestEvent_CloneAndWorkflowID(t *testing.T) {
	t.Parallel()

	event := &Event{ID: "evt-1", Data: map[string]any{"workflowId": "wf-1"}}
	assert.Equal(t, "wf-1", event.WorkflowID())
	assert.Empty(t, (&Event{}).WorkflowID())

	clone := event.Clone()
	clone.Data["workflowId"] = "wf-2"
	assert.Equal(t, "wf-1", event.WorkflowID())
}
