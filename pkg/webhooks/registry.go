package webhooks

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magicians360/pinkflow/pkg/events"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/services"
)

type RegisterRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1,dive,required"`
	Secret string   `json:"secret,omitempty"`
}

// Register stores a new active registration. The returned copy has its secret redacted.
func (d *Dispatcher) Register(ctx context.Context, req RegisterRequest) (*models.WebhookRegistration, error) {
	op := "webhooks.Register"

	target, err := url.Parse(req.URL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return nil, services.NewValidationError(op, fmt.Sprintf("url %q must be an absolute http(s) URL", req.URL))
	}

	if len(req.Events) == 0 {
		return nil, services.NewValidationError(op, "at least one event pattern is required")
	}

	for _, pattern := range req.Events {
		if !validPattern(pattern) {
			return nil, services.NewValidationError(op, fmt.Sprintf("invalid event pattern %q", pattern))
		}
	}

	registration := &models.WebhookRegistration{
		ID:        uuid.NewString(),
		URL:       req.URL,
		Events:    append([]string(nil), req.Events...),
		Secret:    req.Secret,
		Status:    models.WebhookStatusActive,
		CreatedAt: time.Now().UTC(),
	}

	if err := d.store.Save(ctx, registration); err != nil {
		return nil, fmt.Errorf("failed to save webhook: %w", err)
	}

	d.logger.InfoContext(ctx, "Registered webhook", "webhook_id", registration.ID, "events", registration.Events)

	return registration.Redacted(), nil
}

// validPattern accepts "*", an exact event type, or a type prefix followed by ".*".
func validPattern(pattern string) bool {
	if pattern == "*" {
		return true
	}

	return events.ValidType(strings.TrimSuffix(pattern, ".*"))
}

func (d *Dispatcher) Delete(ctx context.Context, id string) error {
	err := d.store.Delete(ctx, id)
	if persistence.IsNotFound(err) {
		return services.NewNotFoundError("webhooks.Delete", "webhook "+id+" not found", err)
	}

	if err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "Deleted webhook", "webhook_id", id)

	return nil
}

func (d *Dispatcher) Get(ctx context.Context, id string) (*models.WebhookRegistration, error) {
	registration, err := d.store.GetByID(ctx, id)
	if persistence.IsNotFound(err) {
		return nil, services.NewNotFoundError("webhooks.Get", "webhook "+id+" not found", err)
	}

	if err != nil {
		return nil, err
	}

	return registration.Redacted(), nil
}

func (d *Dispatcher) List(ctx context.Context) ([]*models.WebhookRegistration, error) {
	registrations, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}

	redacted := make([]*models.WebhookRegistration, len(registrations))
	for i, registration := range registrations {
		redacted[i] = registration.Redacted()
	}

	return redacted, nil
}
