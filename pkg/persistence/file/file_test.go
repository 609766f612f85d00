package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence_Contract(t *testing.T) {
	t.Parallel()

	testutil.RunPersistenceSuite(t, NewPersistence("file://"+t.TempDir()))
}

func TestPersistence_HealthCheckMissingRoot(t *testing.T) {
	t.Parallel()

	p := NewPersistence(filepath.Join(t.TempDir(), "missing"))

	err := p.HealthCheck(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPersistence_WritesOneDocumentPerRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	p := NewPersistence(root)

	workflow := testutil.CreateTestWorkflow(testutil.CreateTestStep("step-1"))
	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	_, err := os.Stat(filepath.Join(root, "workflows", workflow.ID+".json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "workflows"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be renamed away")
}

func TestPersistence_RejectsPathLikeIDs(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())

	err := p.EventRepository().Save(context.Background(), &models.Event{ID: "../escape"})
	require.Error(t, err)

	_, err = p.EventRepository().GetByID(context.Background(), "missing")
	assert.True(t, persistence.IsNotFound(err))
}
