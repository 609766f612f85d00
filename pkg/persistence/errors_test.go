package persistence_test

import (
	"errors"
	"testing"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("record sentinels wrap ErrNotFound", func(t *testing.T) {
		for _, kind := range []string{
			persistence.KindWorkflow,
			persistence.KindEvent,
			persistence.KindSyncOperation,
			persistence.KindWebhook,
		} {
			assert.True(t, persistence.IsNotFound(persistence.NotFoundFor(kind)), kind)
		}
	})

	t.Run("record error unwraps", func(t *testing.T) {
		err := persistence.NewRecordError("GetByID", persistence.KindWorkflow, "wf-123", persistence.ErrWorkflowNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(err))
		assert.True(t, errors.Is(err, persistence.ErrNotFound))
		assert.False(t, errors.Is(err, persistence.ErrEventNotFound))
		assert.Contains(t, err.Error(), "GetByID")
		assert.Contains(t, err.Error(), "wf-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})
}

func TestFilters(t *testing.T) {
	t.Parallel()

	workflow := &models.Workflow{Status: models.WorkflowStatusActive, Owner: "user-1"}

	assert.True(t, persistence.WorkflowFilter{}.Match(workflow))
	assert.True(t, persistence.WorkflowFilter{Status: models.WorkflowStatusActive, Owner: "user-1"}.Match(workflow))
	assert.False(t, persistence.WorkflowFilter{Status: models.WorkflowStatusFailed}.Match(workflow))
	assert.False(t, persistence.WorkflowFilter{Owner: "user-2"}.Match(workflow))

	event := &models.Event{EventType: "video.uploaded", ProcessingStatus: models.ProcessingStatusProcessed}

	assert.True(t, persistence.EventFilter{}.Match(event))
	assert.True(t, persistence.EventFilter{EventType: "video.uploaded"}.Match(event))
	assert.False(t, persistence.EventFilter{Status: models.ProcessingStatusPending}.Match(event))
}
