// Package ingestion accepts events from producers, deduplicates them and dispatches them
// to waiting workflow steps and webhooks.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/eventbus"
	"github.com/magicians360/pinkflow/pkg/events"
	"github.com/magicians360/pinkflow/pkg/metrics"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/services"
	"golang.org/x/sync/errgroup"
)

// Outcome tells a producer whether its event was new.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
)

// DefaultDeliveryWorkers bounds concurrent webhook broadcasts when no option sets it.
const DefaultDeliveryWorkers = 8

// Processing result keys.
const (
	ResultResumedSteps     = "resumedSteps"
	ResultWebhooksNotified = "webhooksNotified"
	ResultWebhooksFailed   = "webhooksFailed"
)

type IngestRequest struct {
	EventType      string         `json:"eventType" validate:"required"`
	Source         string         `json:"source" validate:"required"`
	Data           map[string]any `json:"data"`
	IdempotencyKey string         `json:"idempotencyKey"`
}

// StepResumer completes workflow steps waiting for an event. *workflow.Manager satisfies it.
type StepResumer interface {
	ResumeWaiting(ctx context.Context, event *models.Event) (int, error)
}

// WebhookNotifier fans an event out to the registered webhooks.
type WebhookNotifier interface {
	Broadcast(ctx context.Context, event *models.Event) ([]models.Delivery, error)
}

type Queue struct {
	store     persistence.EventRepository
	dedup     Deduplicator
	publisher eventbus.EventPublisher
	workflows StepResumer
	webhooks  WebhookNotifier
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	processing sync.Map
	deliveries errgroup.Group
}

type QueueOption func(*Queue)

// WithDeliveryWorkers sets how many events may have webhook broadcasts running at once.
func WithDeliveryWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.deliveries.SetLimit(n)
		}
	}
}

func NewQueue(
	store persistence.EventRepository,
	dedup Deduplicator,
	publisher eventbus.EventPublisher,
	workflows StepResumer,
	webhooks WebhookNotifier,
	window time.Duration,
	logger *slog.Logger,
	opts ...QueueOption,
) *Queue {
	q := &Queue{
		store:     store,
		dedup:     dedup,
		publisher: publisher,
		workflows: workflows,
		webhooks:  webhooks,
		window:    window,
		logger:    logger.With("module", "ingestion"),
		now:       func() time.Time { return time.Now().UTC() },
	}

	q.deliveries.SetLimit(DefaultDeliveryWorkers)

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Register subscribes the queue's dispatcher to every event on the bus.
func (q *Queue) Register(bus eventbus.EventSubscriber) error {
	return bus.Handle("*", q.Dispatch)
}

// Ingest stores and publishes an event. Events carrying an idempotency key already seen
// within the retention window are not stored again; the original event is returned.
func (q *Queue) Ingest(ctx context.Context, req IngestRequest) (*models.Event, Outcome, error) {
	op := "ingestion.Ingest"

	if !events.ValidType(req.EventType) {
		return nil, "", services.NewValidationError(op, fmt.Sprintf("invalid event type %q", req.EventType))
	}

	if strings.TrimSpace(req.Source) == "" {
		return nil, "", services.NewValidationError(op, "source is required")
	}

	event := &models.Event{
		ID:               uuid.NewString(),
		EventType:        req.EventType,
		Source:           req.Source,
		Data:             req.Data,
		IdempotencyKey:   req.IdempotencyKey,
		Timestamp:        q.now(),
		ProcessingStatus: models.ProcessingStatusPending,
	}

	if event.Data == nil {
		event.Data = map[string]any{}
	}

	logger := q.logger.With("event_id", event.ID, "event_type", event.EventType)

	if req.IdempotencyKey != "" {
		existingID, fresh, err := q.dedup.Reserve(ctx, req.IdempotencyKey, event.ID, q.window)
		if err != nil {
			return nil, "", fmt.Errorf("failed to reserve idempotency key: %w", err)
		}

		if !fresh {
			metrics.EventsIngestedTotal.WithLabelValues(string(OutcomeDuplicate)).Inc()
			logger.InfoContext(ctx, "Duplicate event", "idempotency_key", req.IdempotencyKey, "original_id", existingID)

			return q.original(ctx, existingID, event), OutcomeDuplicate, nil
		}
	}

	if err := q.store.Save(ctx, event); err != nil {
		q.release(ctx, req.IdempotencyKey)

		return nil, "", fmt.Errorf("failed to save event: %w", err)
	}

	if err := q.publisher.Publish(ctx, event.ID, event); err != nil {
		q.release(ctx, req.IdempotencyKey)
		q.markFailed(ctx, event, fmt.Sprintf("publish failed: %v", err))

		return nil, "", fmt.Errorf("failed to publish event: %w", err)
	}

	metrics.EventsIngestedTotal.WithLabelValues(string(OutcomeAccepted)).Inc()
	logger.InfoContext(ctx, "Accepted event", "source", event.Source)

	return event.Clone(), OutcomeAccepted, nil
}

// original loads the event holding an idempotency key. The holder may still be saving it,
// so the lookup is retried briefly before falling back to a pending placeholder.
func (q *Queue) original(ctx context.Context, id string, duplicate *models.Event) *models.Event {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(20*time.Millisecond), 10), ctx)

	original, err := backoff.RetryWithData(func() (*models.Event, error) {
		event, err := q.store.GetByID(ctx, id)
		if err != nil && !persistence.IsNotFound(err) {
			return nil, backoff.Permanent(err)
		}

		return event, err
	}, policy)
	if err == nil {
		return original
	}

	q.logger.WarnContext(ctx, "Original event not readable", "event_id", id, "error", err)

	placeholder := duplicate.Clone()
	placeholder.ID = id

	return placeholder
}

func (q *Queue) release(ctx context.Context, key string) {
	if key == "" {
		return
	}

	if err := q.dedup.Release(ctx, key); err != nil {
		q.logger.ErrorContext(ctx, "Failed to release idempotency key", "idempotency_key", key, "error", err)
	}
}

// Dispatch delivers an event to waiting steps and to webhooks. Waiting steps are resumed
// on the caller's goroutine; the webhook broadcast runs on a delivery worker, which records
// the processing result once it is done. Both subscribers are always attempted. Events
// already processed are skipped.
func (q *Queue) Dispatch(ctx context.Context, published *models.Event) error {
	if _, busy := q.processing.LoadOrStore(published.ID, struct{}{}); busy {
		return nil
	}

	event, err := q.store.GetByID(ctx, published.ID)
	if err != nil {
		q.processing.Delete(published.ID)

		return fmt.Errorf("failed to load event %s: %w", published.ID, err)
	}

	if event.ProcessingStatus == models.ProcessingStatusProcessed {
		q.processing.Delete(event.ID)
		q.logger.DebugContext(ctx, "Event already processed", "event_id", event.ID)

		return nil
	}

	resumed, resumeErr := q.workflows.ResumeWaiting(ctx, event)
	if resumeErr != nil {
		q.logger.ErrorContext(ctx, "Failed to resume waiting steps", "event_id", event.ID, "error", resumeErr)
	}

	deliverCtx := context.WithoutCancel(ctx)

	q.deliveries.Go(func() error {
		defer q.processing.Delete(event.ID)

		q.broadcast(deliverCtx, event, resumed, resumeErr)

		return nil
	})

	return nil
}

// broadcast notifies webhooks and stores the event's processing result.
func (q *Queue) broadcast(ctx context.Context, event *models.Event, resumed int, resumeErr error) {
	logger := q.logger.With("event_id", event.ID, "event_type", event.EventType)

	var errs []error

	if resumeErr != nil {
		errs = append(errs, fmt.Errorf("resume waiting steps: %w", resumeErr))
	}

	deliveries, err := q.webhooks.Broadcast(ctx, event)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to notify webhooks", "error", err)
		errs = append(errs, fmt.Errorf("notify webhooks: %w", err))
	}

	notified, failed := 0, 0

	for _, delivery := range deliveries {
		if delivery.Status == models.DeliveryStatusDelivered {
			notified++
		} else {
			failed++
		}
	}

	event.ProcessingResult = map[string]any{
		ResultResumedSteps:     resumed,
		ResultWebhooksNotified: notified,
		ResultWebhooksFailed:   failed,
	}

	if err := errors.Join(errs...); err != nil {
		event.ProcessingStatus = models.ProcessingStatusFailed
		event.Error = err.Error()
	} else {
		event.ProcessingStatus = models.ProcessingStatusProcessed
		event.Error = ""
	}

	metrics.EventsProcessedTotal.WithLabelValues(string(event.ProcessingStatus)).Inc()

	if err := q.store.Save(ctx, event); err != nil {
		logger.ErrorContext(ctx, "Failed to save event", "error", err)

		return
	}

	logger.InfoContext(ctx, "Dispatched event",
		"status", event.ProcessingStatus, "resumed_steps", resumed, "webhooks_notified", notified, "webhooks_failed", failed)
}

// Drain waits for running webhook broadcasts. Call it once the bus stopped delivering.
func (q *Queue) Drain(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		_ = q.deliveries.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) markFailed(ctx context.Context, event *models.Event, reason string) {
	event.ProcessingStatus = models.ProcessingStatusFailed
	event.Error = reason

	metrics.EventsProcessedTotal.WithLabelValues(string(event.ProcessingStatus)).Inc()

	if err := q.store.Save(ctx, event); err != nil {
		q.logger.ErrorContext(ctx, "Failed to mark event failed", "event_id", event.ID, "error", err)
	}
}

func (q *Queue) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := q.store.GetByID(ctx, id)
	if persistence.IsNotFound(err) {
		return nil, services.NewNotFoundError("ingestion.Get", "event "+id+" not found", err)
	}

	return event, err
}

func (q *Queue) List(ctx context.Context, filter persistence.EventFilter) ([]*models.Event, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, services.NewValidationError("ingestion.List", fmt.Sprintf("unknown status %q", filter.Status))
	}

	return q.store.List(ctx, filter)
}
