package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magicians360/pinkflow/pkg/ingestion"
	"github.com/magicians360/pinkflow/pkg/persistence"
	redispersistence "github.com/magicians360/pinkflow/pkg/persistence/redis"
	"github.com/redis/go-redis/v9"
)

// NewDeduplicator picks where idempotency keys live. A Redis store shares its client;
// otherwise redisURL is dialed when set, and keys stay in process memory as a last resort.
func NewDeduplicator(ctx context.Context, logger *slog.Logger, store persistence.Persistence, redisURL string) (ingestion.Deduplicator, func() error, error) {
	noop := func() error { return nil }

	if redisStore, ok := store.(*redispersistence.Persistence); ok {
		return ingestion.NewRedisDeduplicator(redisStore.Client()), noop, nil
	}

	if redisURL == "" {
		logger.WarnContext(ctx, "Idempotency keys are kept in memory and not shared between instances")

		return ingestion.NewMemoryDeduplicator(), noop, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return ingestion.NewRedisDeduplicator(client), client.Close, nil
}
