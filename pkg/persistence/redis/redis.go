// Package redis provides Redis persistence, storing each record as a JSON string with a
// sorted set per kind that keeps insertion order.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "pinkflow"

// Persistence implements persistence.Persistence on top of a Redis client.
type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// NewPersistence connects to the Redis server addressed by redisURL (redis://host:port/db).
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewPersistenceWithClient(client, logger, defaultPrefix), nil
}

// NewPersistenceWithClient wraps an existing client. Keys are namespaced under prefix.
func NewPersistenceWithClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Persistence {
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Persistence{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

// Client exposes the underlying client so other components can share the connection.
func (p *Persistence) Client() redis.UniversalClient {
	return p.client
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{records: newRecords(p, persistence.KindWorkflow, func(w *models.Workflow) string { return w.ID })}
}

func (p *Persistence) EventRepository() persistence.EventRepository {
	return &eventRepository{records: newRecords(p, persistence.KindEvent, func(e *models.Event) string { return e.ID })}
}

func (p *Persistence) SyncRepository() persistence.SyncRepository {
	return &syncRepository{records: newRecords(p, persistence.KindSyncOperation, func(s *models.SyncOperation) string { return s.ID })}
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return &webhookRepository{records: newRecords(p, persistence.KindWebhook, func(w *models.WebhookRegistration) string { return w.ID })}
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

type records[T any] struct {
	client redis.UniversalClient
	logger *slog.Logger
	kind   string
	prefix string
	idOf   func(*T) string
}

func newRecords[T any](p *Persistence, kind string, idOf func(*T) string) *records[T] {
	return &records[T]{
		client: p.client,
		logger: p.logger,
		kind:   kind,
		prefix: p.prefix + ":" + kind,
		idOf:   idOf,
	}
}

func (r *records[T]) key(id string) string {
	return r.prefix + ":" + id
}

func (r *records[T]) indexKey() string {
	return r.prefix + ":index"
}

func (r *records[T]) save(ctx context.Context, record *T) error {
	id := r.idOf(record)
	if id == "" {
		return persistence.NewRecordError("Save", r.kind, id, fmt.Errorf("%s id is required", r.kind))
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", r.kind, id, err)
	}

	seq, err := r.client.Incr(ctx, r.prefix+":seq").Result()
	if err != nil {
		return persistence.NewRecordError("Save", r.kind, id, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(id), data, 0)
		pipe.ZAddNX(ctx, r.indexKey(), redis.Z{Score: float64(seq), Member: id})

		return nil
	})
	if err != nil {
		return persistence.NewRecordError("Save", r.kind, id, err)
	}

	return nil
}

func (r *records[T]) get(ctx context.Context, id string) (*T, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewRecordError("GetByID", r.kind, id, persistence.NotFoundFor(r.kind))
		}

		return nil, persistence.NewRecordError("GetByID", r.kind, id, err)
	}

	var record T

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", r.kind, id, err)
	}

	return &record, nil
}

func (r *records[T]) list(ctx context.Context, match func(*T) bool) ([]*T, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s index: %w", r.kind, err)
	}

	result := make([]*T, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", r.kind, err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			r.logger.WarnContext(ctx, "Indexed record is missing", "kind", r.kind, "id", ids[i])

			continue
		}

		var record T

		err := json.Unmarshal([]byte(raw), &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s %s: %w", r.kind, ids[i], err)
		}

		if match == nil || match(&record) {
			result = append(result, &record)
		}
	}

	return result, nil
}

func (r *records[T]) delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, r.key(id))
		pipe.ZRem(ctx, r.indexKey(), id)

		return nil
	})
	if err != nil {
		return persistence.NewRecordError("Delete", r.kind, id, err)
	}

	if deleted.Val() == 0 {
		return persistence.NewRecordError("Delete", r.kind, id, persistence.NotFoundFor(r.kind))
	}

	return nil
}
