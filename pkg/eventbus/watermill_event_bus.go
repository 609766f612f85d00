package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/magicians360/pinkflow/pkg/events"
	"github.com/magicians360/pinkflow/pkg/models"
)

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

type subscription struct {
	pattern string
	handler EventHandler
}

type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu            sync.RWMutex
	subscriptions []subscription
	subscribed    bool
	wg            sync.WaitGroup
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		logger:     logger.With("module", "event_bus"),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(_ context.Context, key string, event *models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, event.EventType)

	return eb.publisher.Publish(events.Topic, msg)
}

// Subscribe starts consuming the events topic. Messages are always acked: handler
// failures are logged and recorded by the handlers themselves.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	eb.mu.Lock()
	if eb.subscribed {
		eb.mu.Unlock()

		return ErrAlreadySubscribed
	}

	eb.subscribed = true
	eb.mu.Unlock()

	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return err
	}

	eb.wg.Add(1)

	go func() {
		defer eb.wg.Done()

		for msg := range messages {
			eb.handle(msg)
			msg.Ack()
		}
	}()

	return nil
}

func (eb *WatermillEventBus) handle(msg *message.Message) {
	eventType := msg.Metadata.Get(events.EventTypeMetadataKey)

	handlers := eb.handlersFor(eventType)
	if len(handlers) == 0 {
		return
	}

	event := &models.Event{}
	if err := json.Unmarshal(msg.Payload, event); err != nil {
		eb.logger.Error("Dropping undecodable message", "message_id", msg.UUID, "error", err)

		return
	}

	for _, handler := range handlers {
		if err := handler(msg.Context(), event); err != nil {
			eb.logger.Error("Event handler failed", "event_id", event.ID, "event_type", eventType, "error", err)
		}
	}
}

func (eb *WatermillEventBus) handlersFor(eventType string) []EventHandler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var handlers []EventHandler

	for _, sub := range eb.subscriptions {
		if models.MatchEventType(sub.pattern, eventType) {
			handlers = append(handlers, sub.handler)
		}
	}

	return handlers
}

func (eb *WatermillEventBus) Handle(pattern string, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions = append(eb.subscriptions, subscription{pattern: pattern, handler: handler})

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	err = eb.subscriber.Close()

	eb.wg.Wait()

	return err
}
