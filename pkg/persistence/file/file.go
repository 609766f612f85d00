// Package file provides file-based persistence storing one JSON document per record.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root      string
	workflows *documents[models.Workflow]
	events    *documents[models.Event]
	syncs     *documents[models.SyncOperation]
	webhooks  *documents[models.WebhookRegistration]
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		workflows: newDocuments(cleanRoot, "workflows", persistence.KindWorkflow, func(w *models.Workflow) string { return w.ID }),
		events:    newDocuments(cleanRoot, "events", persistence.KindEvent, func(e *models.Event) string { return e.ID }),
		syncs:     newDocuments(cleanRoot, "syncs", persistence.KindSyncOperation, func(s *models.SyncOperation) string { return s.ID }),
		webhooks:  newDocuments(cleanRoot, "webhooks", persistence.KindWebhook, func(w *models.WebhookRegistration) string { return w.ID }),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return &workflowRepository{docs: fp.workflows}
}

func (fp *Persistence) EventRepository() persistence.EventRepository {
	return &eventRepository{docs: fp.events}
}

func (fp *Persistence) SyncRepository() persistence.SyncRepository {
	return &syncRepository{docs: fp.syncs}
}

func (fp *Persistence) WebhookRepository() persistence.WebhookRepository {
	return &webhookRepository{docs: fp.webhooks}
}

// documents stores records of one kind as <root>/<dir>/<id>.json.
type documents[T any] struct {
	mu   sync.RWMutex
	dir  string
	kind string
	idOf func(*T) string
}

func newDocuments[T any](root, dir, kind string, idOf func(*T) string) *documents[T] {
	return &documents[T]{
		dir:  path.Join(root, dir),
		kind: kind,
		idOf: idOf,
	}
}

func (d *documents[T]) filePath(id string) string {
	return filepath.Clean(path.Join(d.dir, id+".json"))
}

func (d *documents[T]) save(record *T) error {
	id := d.idOf(record)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return persistence.NewRecordError("Save", d.kind, id, fmt.Errorf("invalid %s id", d.kind))
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", d.kind, id, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	err = os.MkdirAll(d.dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", d.kind, err)
	}

	// Write then rename so readers never see a partial document.
	tmp := d.filePath(id) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", d.kind, id, err)
	}

	return os.Rename(tmp, d.filePath(id))
}

func (d *documents[T]) get(id string) (*T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.read(id)
}

func (d *documents[T]) read(id string) (*T, error) {
	body, err := os.ReadFile(d.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRecordError("GetByID", d.kind, id, persistence.NotFoundFor(d.kind))
		}

		return nil, fmt.Errorf("failed to fetch %s %s: %w", d.kind, id, err)
	}

	var record T

	err = json.Unmarshal(body, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", d.kind, id, err)
	}

	return &record, nil
}

// list returns matching records ordered by id. Ids are UUIDv7 so this is creation order.
func (d *documents[T]) list(match func(*T) bool) ([]*T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(d.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", d.kind, err)
	}

	sort.Strings(jsonFiles)

	records := make([]*T, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		record, err := d.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}

			return nil, err
		}

		if match == nil || match(record) {
			records = append(records, record)
		}
	}

	return records, nil
}

func (d *documents[T]) remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := os.Remove(d.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewRecordError("Delete", d.kind, id, persistence.NotFoundFor(d.kind))
		}

		return fmt.Errorf("failed to delete %s %s: %w", d.kind, id, err)
	}

	return nil
}
