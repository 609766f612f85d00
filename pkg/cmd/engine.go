package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/coordinator"
	"github.com/magicians360/pinkflow/pkg/eventbus"
	"github.com/magicians360/pinkflow/pkg/executor"
	"github.com/magicians360/pinkflow/pkg/ingestion"
	"github.com/magicians360/pinkflow/pkg/otelhelper"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/registry"
	"github.com/magicians360/pinkflow/pkg/web"
	"github.com/magicians360/pinkflow/pkg/webhooks"
	"github.com/magicians360/pinkflow/pkg/workflow"
	"go.opentelemetry.io/otel/trace"
)

// EngineOptions selects the backends an Engine is assembled from.
type EngineOptions struct {
	DatabaseURL  string
	EventBus     string
	KafkaBrokers []string
	RedisURL     string
	ServicesFile string
	PluginsPath  string
	Config       *config.Config
	Tracer       trace.Tracer
}

// Engine wires the stores, bus, state machine, queue, coordinator and dispatcher together.
type Engine struct {
	Config      *config.Config
	Store       persistence.Persistence
	Bus         eventbus.EventBus
	Registry    *registry.Registry
	Workflows   *workflow.Manager
	Events      *ingestion.Queue
	Coordinator *coordinator.Coordinator
	Webhooks    *webhooks.Dispatcher
	Scheduler   *coordinator.Scheduler

	autoSync   []config.AutoSyncJob
	closeDedup func() error
	base       *slog.Logger
	logger     *slog.Logger
}

// NewEngine builds every component but starts nothing.
func NewEngine(ctx context.Context, logger *slog.Logger, opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	var servicesFile config.ServicesFile

	if opts.ServicesFile != "" {
		loaded, err := config.LoadServicesFile(opts.ServicesFile)
		if err != nil {
			return nil, err
		}

		servicesFile = *loaded
		servicesFile.Apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	reg, err := NewRegistry(logger, servicesFile.Services, opts.PluginsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build adapter registry: %w", err)
	}

	store, err := NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	bus, err := NewEventBus(opts.EventBus, opts.KafkaBrokers, logger)
	if err != nil {
		_ = store.Close(ctx)

		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	dedup, closeDedup, err := NewDeduplicator(ctx, logger, store, opts.RedisURL)
	if err != nil {
		_ = bus.Close()
		_ = store.Close(ctx)

		return nil, err
	}

	exec := executor.NewExecutor(reg, cfg, logger, tracer)
	workflows := workflow.NewManager(store.WorkflowRepository(), exec, cfg, logger)
	dispatcher := webhooks.NewDispatcher(store.WebhookRepository(), cfg, logger, tracer)
	queue := ingestion.NewQueue(store.EventRepository(), dedup, bus, workflows, dispatcher, cfg.DedupWindow, logger,
		ingestion.WithDeliveryWorkers(cfg.WebhookConcurrency))
	coord := coordinator.NewCoordinator(store.SyncRepository(), workflows, cfg.SyncRoutes, logger)

	// The coordinator records sync results before the transition is published as an event.
	workflows.AddListener(coord.WorkflowListener())
	workflows.AddListener(queue.WorkflowListener())
	coord.AddListener(queue.SyncListener())

	return &Engine{
		Config:      cfg,
		Store:       store,
		Bus:         bus,
		Registry:    reg,
		Workflows:   workflows,
		Events:      queue,
		Coordinator: coord,
		Webhooks:    dispatcher,
		Scheduler:   coordinator.NewScheduler(coord, cfg.SyncInterval, logger),
		autoSync:    servicesFile.AutoSync,
		closeDedup:  closeDedup,
		base:        logger,
		logger:      logger.With("module", "engine"),
	}, nil
}

// Handlers returns the HTTP handlers backed by this engine.
func (e *Engine) Handlers(validate *validator.Validate) *web.APIHandlers {
	return web.NewAPIHandlers(e.Workflows, e.Events, e.Coordinator, e.Webhooks, e.Registry, e.Store, validate, e.base)
}

// Start subscribes the event dispatcher, resumes workflows and sync operations left by a
// previous run and starts the auto-sync scheduler.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Events.Register(e.Bus); err != nil {
		return fmt.Errorf("failed to register event dispatcher: %w", err)
	}

	if err := e.Bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	if _, err := e.Workflows.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover workflows: %w", err)
	}

	if err := e.Coordinator.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover sync operations: %w", err)
	}

	for _, job := range e.autoSync {
		if err := e.Scheduler.Add(job); err != nil {
			return fmt.Errorf("failed to schedule auto sync %s: %w", job.Type, err)
		}
	}

	e.Scheduler.Start()

	e.logger.InfoContext(ctx, "Engine started", "sync_types", e.Coordinator.Types(), "auto_sync_jobs", len(e.autoSync))

	return nil
}

// Shutdown stops the scheduler, drains in-flight steps, then closes the bus and stores.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error

	if err := e.Scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	if err := e.Workflows.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("workflows: %w", err))
	}

	if err := e.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}

	if err := e.Events.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("webhook deliveries: %w", err))
	}

	if err := e.closeDedup(); err != nil {
		errs = append(errs, fmt.Errorf("deduplicator: %w", err))
	}

	if err := e.Store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("persistence: %w", err))
	}

	return errors.Join(errs...)
}
