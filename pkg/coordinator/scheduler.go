package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/robfig/cron/v3"
)

// Syncer starts syncs. *Coordinator satisfies it.
type Syncer interface {
	Sync(ctx context.Context, syncType, sourceID, targetID string) (*models.SyncOperation, error)
}

// Scheduler triggers configured syncs on cron schedules.
type Scheduler struct {
	cron            *cron.Cron
	syncer          Syncer
	defaultSchedule string
	timeout         time.Duration
	logger          *slog.Logger
	jobs            map[string]cron.EntryID
}

// NewScheduler creates a scheduler. Jobs without a schedule run every interval.
func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	logger = logger.With("module", "sync_scheduler")
	cronLogger := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		), cron.WithLogger(cronLogger)),
		syncer:          syncer,
		defaultSchedule: "@every " + interval.String(),
		timeout:         30 * time.Second,
		logger:          logger,
		jobs:            make(map[string]cron.EntryID),
	}
}

// Add schedules a job. Adding the same sync key twice replaces the earlier schedule.
func (s *Scheduler) Add(job config.AutoSyncJob) error {
	schedule := job.Schedule
	if schedule == "" {
		schedule = s.defaultSchedule
	}

	key := models.SyncKey(job.Type, job.SourceID, job.TargetID)

	entryID, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, key, err)
	}

	if previous, ok := s.jobs[key]; ok {
		s.cron.Remove(previous)
	}

	s.jobs[key] = entryID

	s.logger.Info("Scheduled auto sync", "sync_type", job.Type, "source_id", job.SourceID, "target_id", job.TargetID, "schedule", schedule)

	return nil
}

func (s *Scheduler) run(job config.AutoSyncJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	operation, err := s.syncer.Sync(ctx, job.Type, job.SourceID, job.TargetID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Auto sync failed to start", "sync_type", job.Type, "source_id", job.SourceID, "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Auto sync triggered", "sync_id", operation.ID, "status", operation.Status)
}

func (s *Scheduler) Len() int {
	return len(s.jobs)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's logr-style logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
