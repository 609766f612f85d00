// Package webhooks delivers events to registered HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/metrics"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/otelhelper"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	HeaderEvent     = "X-Pinkflow-Event"
	HeaderDelivery  = "X-Pinkflow-Delivery"
	HeaderSignature = "X-Pinkflow-Signature"
)

// Payload is the JSON body posted to webhook endpoints.
type Payload struct {
	ID        string         `json:"id"`
	EventType string         `json:"eventType"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type Dispatcher struct {
	store       persistence.WebhookRepository
	client      *http.Client
	retry       config.RetryConfig
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewDispatcher(store persistence.WebhookRepository, cfg *config.Config, logger *slog.Logger, tracer trace.Tracer) *Dispatcher {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Dispatcher{
		store:       store,
		client:      &http.Client{Timeout: cfg.WebhookTimeout},
		retry:       cfg.WebhookRetry,
		concurrency: cfg.WebhookConcurrency,
		logger:      logger.With("module", "webhook_dispatcher"),
		tracer:      tracer,
	}
}

// Broadcast delivers event to every stored registration subscribed to it.
func (d *Dispatcher) Broadcast(ctx context.Context, event *models.Event) ([]models.Delivery, error) {
	registrations, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	return d.Notify(ctx, event, registrations), nil
}

// Notify delivers event to the active registrations matching its type, concurrently.
// Failed deliveries are reported in the result and logged, never returned as an error.
func (d *Dispatcher) Notify(ctx context.Context, event *models.Event, registrations []*models.WebhookRegistration) []models.Delivery {
	var targets []*models.WebhookRegistration

	for _, registration := range registrations {
		if registration.Matches(event.EventType) {
			targets = append(targets, registration)
		}
	}

	if len(targets) == 0 {
		return nil
	}

	body, err := json.Marshal(Payload{
		ID:        event.ID,
		EventType: event.EventType,
		Source:    event.Source,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to encode webhook payload", "event_id", event.ID, "error", err)

		deliveries := make([]models.Delivery, len(targets))
		for i, target := range targets {
			deliveries[i] = models.Delivery{WebhookID: target.ID, EventID: event.ID, Status: models.DeliveryStatusFailed, Error: err.Error()}
		}

		return deliveries
	}

	deliveries := make([]models.Delivery, len(targets))

	g := errgroup.Group{}
	g.SetLimit(d.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			deliveries[i] = d.deliver(ctx, event, target, body)

			return nil
		})
	}

	_ = g.Wait()

	return deliveries
}

func (d *Dispatcher) deliver(ctx context.Context, event *models.Event, registration *models.WebhookRegistration, body []byte) models.Delivery {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "webhooks.deliver",
		attribute.String(otelhelper.WebhookIDKey, registration.ID),
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.EventTypeKey, event.EventType),
	)
	defer span.End()

	delivery := models.Delivery{WebhookID: registration.ID, EventID: event.ID}
	deliveryID := uuid.NewString()
	logger := d.logger.With("webhook_id", registration.ID, "event_id", event.ID, "delivery_id", deliveryID)

	err := backoff.RetryNotify(func() error {
		delivery.Attempts++

		statusCode, err := d.post(ctx, event.EventType, deliveryID, registration, body)
		delivery.StatusCode = statusCode

		return err
	}, d.newBackOff(ctx), func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "Webhook delivery failed, retrying", "attempt", delivery.Attempts, "retry_in", wait, "error", err)
	})
	if err != nil {
		delivery.Status = models.DeliveryStatusFailed
		delivery.Error = err.Error()

		otelhelper.SetError(span, err, attribute.Int(otelhelper.AttemptsKey, delivery.Attempts))
		logger.ErrorContext(ctx, "Webhook delivery failed", "url", registration.URL, "attempts", delivery.Attempts, "error", err)
	} else {
		delivery.Status = models.DeliveryStatusDelivered

		logger.DebugContext(ctx, "Webhook delivered", "attempts", delivery.Attempts, "status_code", delivery.StatusCode)
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues(string(delivery.Status)).Inc()

	return delivery
}

// post sends one attempt. 4xx responses and request construction errors are permanent.
func (d *Dispatcher) post(ctx context.Context, eventType, deliveryID string, registration *models.WebhookRegistration, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registration.URL, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pinkflow-webhooks")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, deliveryID)

	if registration.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(registration.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, backoff.Permanent(err)
		}

		return 0, err
	}

	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode < 300:
		return resp.StatusCode, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, fmt.Errorf("webhook responded %d", resp.StatusCode)
	default:
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("webhook responded %d", resp.StatusCode))
	}
}

func (d *Dispatcher) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.retry.InitialInterval
	exp.MaxInterval = d.retry.MaxInterval
	exp.Multiplier = d.retry.Multiplier
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(d.retry.MaxAttempts-1)), ctx)
}
