package builtin

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter() *Adapter {
	adapter := NewAdapter(slog.Default())
	adapter.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	return adapter
}

func TestAdapter_Fetch(t *testing.T) {
	t.Parallel()

	result, err := newTestAdapter().Invoke(context.Background(), ActionFetch, map[string]any{"sourceId": "biz-1"})
	require.NoError(t, err)

	assert.Equal(t, "biz-1", result["sourceId"])
	assert.Equal(t, "2025-01-02T03:04:05Z", result["fetchedAt"])

	_, err = newTestAdapter().Invoke(context.Background(), ActionFetch, map[string]any{})
	assert.Error(t, err)
}

func TestAdapter_Reconcile(t *testing.T) {
	t.Parallel()

	params := map[string]any{
		"targetId": "vr-1",
		"previous": map[string]any{"fetch": map[string]any{"sourceId": "biz-1"}},
	}

	result, err := newTestAdapter().Invoke(context.Background(), ActionReconcile, params)
	require.NoError(t, err)

	assert.Equal(t, "vr-1", result["targetId"])
	assert.Equal(t, true, result["reconciled"])
	assert.Equal(t, map[string]any{"fetch": map[string]any{"sourceId": "biz-1"}}, result["merged"])
}

func TestAdapter_EchoAndLog(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter()

	echo, err := adapter.Invoke(context.Background(), ActionEcho, map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, echo)

	logged, err := adapter.Invoke(context.Background(), ActionLog, map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, true, logged["logged"])
}

func TestAdapter_Errors(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter()

	_, err := adapter.Invoke(context.Background(), "teleport", nil)
	assert.ErrorContains(t, err, "unsupported action")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = adapter.Invoke(ctx, ActionEcho, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := NewFactory(slog.Default())
	assert.Equal(t, "internal", factory.ID())

	adapter, err := factory.Create(nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, adapter)
}
