package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduplicator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dedup := NewMemoryDeduplicator()
	dedup.now = func() time.Time { return now }

	existing, fresh, err := dedup.Reserve(ctx, "key-1", "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Empty(t, existing)

	existing, fresh, err = dedup.Reserve(ctx, "key-1", "evt-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, "evt-1", existing)

	now = now.Add(time.Hour)

	_, fresh, err = dedup.Reserve(ctx, "key-1", "evt-3", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh, "expired reservation is reusable")

	require.NoError(t, dedup.Release(ctx, "key-1"))

	_, fresh, err = dedup.Reserve(ctx, "key-1", "evt-4", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryDeduplicator_SweepsExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dedup := NewMemoryDeduplicator()
	dedup.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		_, _, err := dedup.Reserve(ctx, key, "evt-"+key, time.Second)
		require.NoError(t, err)
	}

	now = now.Add(2 * time.Minute)

	_, _, err := dedup.Reserve(ctx, "d", "evt-d", time.Second)
	require.NoError(t, err)

	assert.Len(t, dedup.entries, 1)
}

func TestRedisDeduplicator(t *testing.T) {
	t.Parallel()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	dedup := NewRedisDeduplicator(client)

	_, fresh, err := dedup.Reserve(ctx, "key-1", "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.True(t, server.Exists(dedupKeyPrefix+"key-1"))

	existing, fresh, err := dedup.Reserve(ctx, "key-1", "evt-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, "evt-1", existing)

	server.FastForward(time.Hour + time.Second)

	_, fresh, err = dedup.Reserve(ctx, "key-1", "evt-3", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	require.NoError(t, dedup.Release(ctx, "key-1"))
	assert.False(t, server.Exists(dedupKeyPrefix+"key-1"))
}
