//go:build integration

package kafka_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	channelkafka "github.com/magicians360/pinkflow/pkg/channels/kafka"
	"github.com/magicians360/pinkflow/pkg/eventbus"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) []string {
	t.Helper()

	ctx := context.Background()

	container, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0", kafka.WithClusterID("pinkflow-test"))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, testcontainers.TerminateContainer(container))
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	return brokers
}

func TestKafkaEventBus_RoundTrip(t *testing.T) {
	brokers := setupKafka(t)
	logger := slog.Default()

	pub, sub, err := channelkafka.CreateChannel(watermill.NewSlogLogger(logger), brokers, "pinkflow-test")
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)

	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan *models.Event, 1)

	require.NoError(t, bus.Handle("business.formation.*", func(_ context.Context, event *models.Event) error {
		received <- event

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "biz-1", &models.Event{
		ID:        bus.GenerateID(),
		EventType: "business.formation.completed",
		Source:    "northwest",
		Data:      map[string]any{"entityId": "E-1"},
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "business.formation.completed", event.EventType)
		assert.Equal(t, "E-1", event.Data["entityId"])
	case <-time.After(60 * time.Second):
		t.Fatal("event never consumed from Kafka")
	}
}
