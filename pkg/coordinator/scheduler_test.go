package coordinator_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/coordinator"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	mu    sync.Mutex
	calls []string
}

func (s *countingSyncer) Sync(_ context.Context, syncType, sourceID, targetID string) (*models.SyncOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, models.SyncKey(syncType, sourceID, targetID))

	return &models.SyncOperation{ID: "sync-1", Status: models.SyncStatusPending}, nil
}

func (s *countingSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

func TestScheduler_RunsJobs(t *testing.T) {
	t.Parallel()

	syncer := &countingSyncer{}
	scheduler := coordinator.NewScheduler(syncer, time.Second, slog.Default())

	require.NoError(t, scheduler.Add(config.AutoSyncJob{Type: config.SyncTypeFull, SourceID: "a", TargetID: "b"}))

	scheduler.Start()

	require.Eventually(t, func() bool { return syncer.count() >= 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, scheduler.Stop(ctx))

	syncer.mu.Lock()
	defer syncer.mu.Unlock()

	assert.Equal(t, models.SyncKey(config.SyncTypeFull, "a", "b"), syncer.calls[0])
}

func TestScheduler_Add(t *testing.T) {
	t.Parallel()

	scheduler := coordinator.NewScheduler(&countingSyncer{}, time.Minute, slog.Default())

	err := scheduler.Add(config.AutoSyncJob{Type: config.SyncTypeFull, SourceID: "a", TargetID: "b", Schedule: "not a schedule"})
	require.Error(t, err)

	require.NoError(t, scheduler.Add(config.AutoSyncJob{Type: config.SyncTypeFull, SourceID: "a", TargetID: "b", Schedule: "*/5 * * * *"}))
	require.NoError(t, scheduler.Add(config.AutoSyncJob{Type: config.SyncTypeFull, SourceID: "a", TargetID: "b", Schedule: "@hourly"}))
	require.NoError(t, scheduler.Add(config.AutoSyncJob{Type: config.SyncTypeBusinessVR, SourceID: "a", TargetID: "b"}))

	assert.Equal(t, 2, scheduler.Len())
}
