// Package eventbus carries ingested events between the ingestion queue and its dispatcher.
package eventbus

import (
	"context"

	"github.com/magicians360/pinkflow/pkg/models"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event *models.Event) error
}

type EventSubscriber interface {
	// Handle registers handler for event types matching pattern (exact, "prefix.*" or "*").
	Handle(pattern string, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event *models.Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
