// Package workflow implements the workflow state machine: step sequencing, status
// transitions and per-workflow serialization of every mutation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/events"
	"github.com/magicians360/pinkflow/pkg/executor"
	"github.com/magicians360/pinkflow/pkg/metrics"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/services"
)

// StepExecutor runs a single step. *executor.Executor satisfies it.
type StepExecutor interface {
	Execute(ctx context.Context, inv executor.Invocation) executor.Result
}

// Transition names a state change reported to listeners. Values double as event types.
type Transition string

const (
	TransitionStarted       Transition = events.WorkflowStarted
	TransitionCompleted     Transition = events.WorkflowCompleted
	TransitionFailed        Transition = events.WorkflowFailed
	TransitionStepCompleted Transition = events.WorkflowStepCompleted
	TransitionStepFailed    Transition = events.WorkflowStepFailed
	TransitionStepWaiting   Transition = events.WorkflowStepWaiting
)

// Notification describes one transition. Workflow is a snapshot taken after the change was stored.
type Notification struct {
	Transition Transition
	Workflow   *models.Workflow
	StepID     string
}

// Listener observes transitions. Listeners run while the workflow is locked and must not
// call back into the Manager for the same workflow.
type Listener func(ctx context.Context, n Notification)

// errNoChange aborts a mutation without saving.
var errNoChange = errors.New("no change")

type Manager struct {
	store             persistence.WorkflowRepository
	executor          StepExecutor
	logger            *slog.Logger
	userActionTimeout time.Duration
	now               func() time.Time

	locks *keyedMutex

	listenersMu sync.RWMutex
	listeners   []Listener

	ctx    context.Context
	cancel context.CancelFunc

	asyncMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup

	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc
	timers     map[string]*time.Timer
}

func NewManager(store persistence.WorkflowRepository, exec StepExecutor, cfg *config.Config, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:             store,
		executor:          exec,
		logger:            logger.With("module", "workflow_manager"),
		userActionTimeout: cfg.UserActionTimeout,
		now:               func() time.Time { return time.Now().UTC() },
		locks:             newKeyedMutex(),
		ctx:               ctx,
		cancel:            cancel,
		inflight:          make(map[string]context.CancelFunc),
		timers:            make(map[string]*time.Timer),
	}
}

// AddListener registers a transition listener.
func (m *Manager) AddListener(listener Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.listeners = append(m.listeners, listener)
}

// Create validates and stores a new pending workflow.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*models.Workflow, error) {
	wf, err := req.build("workflow.Create", m.now())
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	metrics.WorkflowTransitionsTotal.WithLabelValues(string(models.WorkflowStatusPending)).Inc()
	m.logger.InfoContext(ctx, "Created workflow", "workflow_id", wf.ID, "name", wf.Name, "steps", len(wf.Steps))

	return wf.Clone(), nil
}

// Start activates a pending workflow and dispatches its first eligible steps.
func (m *Manager) Start(ctx context.Context, id string) (*models.Workflow, error) {
	op := "workflow.Start"

	return m.mutate(ctx, op, id, func(wf *models.Workflow, tx *txn) error {
		if wf.Status != models.WorkflowStatusPending {
			return services.NewInvalidStateError(op, fmt.Sprintf("workflow %s is %s, expected pending", wf.ID, wf.Status))
		}

		now := m.now()
		wf.Status = models.WorkflowStatusActive
		wf.StartedAt = &now

		metrics.WorkflowTransitionsTotal.WithLabelValues(string(models.WorkflowStatusActive)).Inc()
		tx.notify(TransitionStarted, "")

		m.progress(wf, tx)

		return nil
	})
}

// Cancel fails a pending or active workflow. In-flight adapter calls are cancelled and
// their late results dropped.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (*models.Workflow, error) {
	op := "workflow.Cancel"

	if reason == "" {
		reason = "cancelled"
	}

	return m.mutate(ctx, op, id, func(wf *models.Workflow, tx *txn) error {
		if wf.Status.IsTerminal() {
			return services.NewInvalidStateError(op, fmt.Sprintf("workflow %s is already %s", wf.ID, wf.Status))
		}

		now := m.now()

		for _, step := range wf.Steps {
			if step.Status == models.StepStatusInProgress || step.IsWaiting() {
				m.abortStep(wf.ID, step.ID)
				markFailed(step, reason, now)
			}
		}

		if !wf.HasFailedStep() {
			for _, step := range wf.Steps {
				if !step.Status.IsDone() {
					markFailed(step, reason, now)

					break
				}
			}
		}

		m.failWorkflow(wf, reason, tx)

		return nil
	})
}

// Get returns the workflow with the given id.
func (m *Manager) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return m.load(ctx, "workflow.Get", id)
}

// List returns the workflows matching filter.
func (m *Manager) List(ctx context.Context, filter persistence.WorkflowFilter) ([]*models.Workflow, error) {
	workflows, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Shutdown stops accepting step work and waits for in-flight executor calls. When ctx
// expires first the calls are cancelled and their steps stay in_progress.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.asyncMu.Lock()
	m.closed = true
	m.asyncMu.Unlock()

	m.inflightMu.Lock()
	for key, timer := range m.timers {
		timer.Stop()
		delete(m.timers, key)
	}
	m.inflightMu.Unlock()

	done := make(chan struct{})

	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()

		return nil
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline reached, cancelling in-flight steps")
		m.cancel()
		<-done

		return ctx.Err()
	}
}

type launch struct {
	step     *models.Step
	previous map[string]any
}

type waiting struct {
	stepID string
	since  time.Time
}

// txn collects the side effects of one mutation, applied after the workflow is saved.
type txn struct {
	launches      []launch
	waits         []waiting
	notifications []Notification
}

func (tx *txn) notify(transition Transition, stepID string) {
	tx.notifications = append(tx.notifications, Notification{Transition: transition, StepID: stepID})
}

func (m *Manager) load(ctx context.Context, op, id string) (*models.Workflow, error) {
	wf, err := m.store.GetByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, services.NewNotFoundError(op, fmt.Sprintf("workflow %s not found", id), err)
		}

		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	return wf, nil
}

// mutate runs fn on the stored workflow under the workflow's lock, saves the result and
// then applies the collected side effects.
func (m *Manager) mutate(ctx context.Context, op, id string, fn func(*models.Workflow, *txn) error) (*models.Workflow, error) {
	release := m.locks.Lock(id)
	defer release()

	wf, err := m.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	tx := &txn{}

	if err := fn(wf, tx); err != nil {
		if errors.Is(err, errNoChange) {
			return wf, nil
		}

		return nil, err
	}

	wf.UpdatedAt = m.now()

	if err := m.store.Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to save workflow %s: %w", id, err)
	}

	for _, w := range tx.waits {
		m.armTimer(wf.ID, w)
	}

	for _, l := range tx.launches {
		m.launch(wf.ID, l)
	}

	m.emit(ctx, wf, tx.notifications)

	return wf.Clone(), nil
}

func (m *Manager) emit(ctx context.Context, wf *models.Workflow, notifications []Notification) {
	if len(notifications) == 0 {
		return
	}

	m.listenersMu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.listenersMu.RUnlock()

	for _, n := range notifications {
		n.Workflow = wf.Clone()

		m.logger.InfoContext(ctx, "Workflow transition", "workflow_id", wf.ID, "transition", n.Transition, "step_id", n.StepID)

		for _, listener := range listeners {
			listener(ctx, n)
		}
	}
}

// goAsync runs fn on a tracked goroutine unless the manager is shutting down.
func (m *Manager) goAsync(fn func()) bool {
	m.asyncMu.Lock()
	defer m.asyncMu.Unlock()

	if m.closed {
		return false
	}

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		fn()
	}()

	return true
}

// runTracked runs fn synchronously as tracked work unless the manager is shutting down.
func (m *Manager) runTracked(fn func()) {
	m.asyncMu.Lock()

	if m.closed {
		m.asyncMu.Unlock()

		return
	}

	m.wg.Add(1)
	m.asyncMu.Unlock()

	defer m.wg.Done()

	fn()
}
