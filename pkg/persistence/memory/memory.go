// Package memory provides an in-process persistence implementation, used by default and in tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with maps guarded by mutexes.
// Records are stored encoded so callers never share memory with the store.
type Persistence struct {
	workflows *collection[models.Workflow]
	events    *collection[models.Event]
	syncs     *collection[models.SyncOperation]
	webhooks  *collection[models.WebhookRegistration]
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows: newCollection(persistence.KindWorkflow, func(w *models.Workflow) string { return w.ID }),
		events:    newCollection(persistence.KindEvent, func(e *models.Event) string { return e.ID }),
		syncs:     newCollection(persistence.KindSyncOperation, func(s *models.SyncOperation) string { return s.ID }),
		webhooks:  newCollection(persistence.KindWebhook, func(w *models.WebhookRegistration) string { return w.ID }),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{records: p.workflows}
}

func (p *Persistence) EventRepository() persistence.EventRepository {
	return &eventRepository{records: p.events}
}

func (p *Persistence) SyncRepository() persistence.SyncRepository {
	return &syncRepository{records: p.syncs}
}

func (p *Persistence) WebhookRepository() persistence.WebhookRepository {
	return &webhookRepository{records: p.webhooks}
}

// HealthCheck always succeeds for the in-memory store.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

type collection[T any] struct {
	mu      sync.RWMutex
	kind    string
	idOf    func(*T) string
	records map[string][]byte
	order   []string
}

func newCollection[T any](kind string, idOf func(*T) string) *collection[T] {
	return &collection[T]{
		kind:    kind,
		idOf:    idOf,
		records: make(map[string][]byte),
	}
}

func (c *collection[T]) put(record *T) error {
	id := c.idOf(record)
	if id == "" {
		return persistence.NewRecordError("Save", c.kind, id, fmt.Errorf("%s id is required", c.kind))
	}

	data, err := json.Marshal(record)
	if err != nil {
		return persistence.NewRecordError("Save", c.kind, id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[id]; !exists {
		c.order = append(c.order, id)
	}

	c.records[id] = data

	return nil
}

func (c *collection[T]) get(id string) (*T, error) {
	c.mu.RLock()
	data, ok := c.records[id]
	c.mu.RUnlock()

	if !ok {
		return nil, persistence.NewRecordError("GetByID", c.kind, id, persistence.NotFoundFor(c.kind))
	}

	return c.decode(id, data)
}

func (c *collection[T]) list(match func(*T) bool) ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*T, 0, len(c.order))

	for _, id := range c.order {
		record, err := c.decode(id, c.records[id])
		if err != nil {
			return nil, err
		}

		if match == nil || match(record) {
			result = append(result, record)
		}
	}

	return result, nil
}

func (c *collection[T]) delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[id]; !ok {
		return persistence.NewRecordError("Delete", c.kind, id, persistence.NotFoundFor(c.kind))
	}

	delete(c.records, id)

	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)

			break
		}
	}

	return nil
}

func (c *collection[T]) decode(id string, data []byte) (*T, error) {
	var record T

	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewRecordError("decode", c.kind, id, err)
	}

	return &record, nil
}
