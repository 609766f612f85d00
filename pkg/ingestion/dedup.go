package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Deduplicator reserves idempotency keys for a retention window.
type Deduplicator interface {
	// Reserve claims key for eventID. When the key is already held, it returns the id of
	// the event that holds it and fresh is false.
	Reserve(ctx context.Context, key, eventID string, ttl time.Duration) (existingID string, fresh bool, err error)
	// Release frees a key whose event could not be stored.
	Release(ctx context.Context, key string) error
}

type dedupEntry struct {
	eventID string
	expires time.Time
}

// MemoryDeduplicator keeps reservations in process memory.
type MemoryDeduplicator struct {
	mu        sync.Mutex
	entries   map[string]dedupEntry
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{
		entries: make(map[string]dedupEntry),
		now:     time.Now,
	}
}

func (d *MemoryDeduplicator) Reserve(_ context.Context, key, eventID string, ttl time.Duration) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.sweep(now)

	if entry, ok := d.entries[key]; ok && now.Before(entry.expires) {
		return entry.eventID, false, nil
	}

	d.entries[key] = dedupEntry{eventID: eventID, expires: now.Add(ttl)}

	return "", true, nil
}

func (d *MemoryDeduplicator) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.entries, key)

	return nil
}

// sweep drops expired entries at most once a minute.
func (d *MemoryDeduplicator) sweep(now time.Time) {
	if now.Before(d.nextSweep) {
		return
	}

	for key, entry := range d.entries {
		if !now.Before(entry.expires) {
			delete(d.entries, key)
		}
	}

	d.nextSweep = now.Add(time.Minute)
}

const dedupKeyPrefix = "pinkflow:dedup:"

// RedisDeduplicator shares reservations between processes with SET NX and a TTL.
type RedisDeduplicator struct {
	client redis.UniversalClient
}

func NewRedisDeduplicator(client redis.UniversalClient) *RedisDeduplicator {
	return &RedisDeduplicator{client: client}
}

func (d *RedisDeduplicator) Reserve(ctx context.Context, key, eventID string, ttl time.Duration) (string, bool, error) {
	redisKey := dedupKeyPrefix + key

	// Two rounds: the holder may expire between SETNX and GET.
	for range 2 {
		ok, err := d.client.SetNX(ctx, redisKey, eventID, ttl).Result()
		if err != nil {
			return "", false, err
		}

		if ok {
			return "", true, nil
		}

		existing, err := d.client.Get(ctx, redisKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return "", false, err
		}

		return existing, false, nil
	}

	return "", false, errors.New("idempotency key churned during reservation")
}

func (d *RedisDeduplicator) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, dedupKeyPrefix+key).Err()
}
