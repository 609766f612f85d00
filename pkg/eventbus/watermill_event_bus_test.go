package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/magicians360/pinkflow/pkg/channels/gochannel"
	"github.com/magicians360/pinkflow/pkg/eventbus"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

type recorder struct {
	mu     sync.Mutex
	events []*models.Event
}

func (r *recorder) handler(err error) eventbus.EventHandler {
	return func(_ context.Context, event *models.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.events = append(r.events, event)

		return err
	}
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]string, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.EventType)
	}

	return types
}

func TestWatermillEventBus_RoutesByPattern(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	formation := &recorder{}
	all := &recorder{}

	require.NoError(t, bus.Handle("business.formation.*", formation.handler(nil)))
	require.NoError(t, bus.Handle("*", all.handler(errors.New("handler failure is logged"))))
	require.NoError(t, bus.Subscribe(context.Background()))

	completed := testutil.CreateTestEvent("business.formation.completed")
	require.NoError(t, bus.Publish(context.Background(), completed.ID, completed))

	video := testutil.CreateTestEvent("video.uploaded")
	require.NoError(t, bus.Publish(context.Background(), video.ID, video))

	require.Eventually(t, func() bool { return len(all.types()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"business.formation.completed"}, formation.types())
	assert.ElementsMatch(t, []string{"business.formation.completed", "video.uploaded"}, all.types())

	formation.mu.Lock()
	defer formation.mu.Unlock()

	assert.Equal(t, completed.ID, formation.events[0].ID)
	assert.Equal(t, "biz-1", formation.events[0].Data["businessId"])
}

func TestWatermillEventBus_SubscribeOnce(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	require.NoError(t, bus.Subscribe(context.Background()))
	assert.ErrorIs(t, bus.Subscribe(context.Background()), eventbus.ErrAlreadySubscribed)
	assert.NotEmpty(t, bus.GenerateID())
}
