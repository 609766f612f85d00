package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magicians360/pinkflow/pkg/cmd"
	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/log"
	"github.com/magicians360/pinkflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

func engineConfig(command *cli.Command) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.StepTimeout = command.Duration("step-timeout")
	cfg.UserActionTimeout = command.Duration("user-action-timeout")
	cfg.DedupWindow = command.Duration("dedup-window")
	cfg.SyncInterval = command.Duration("sync-interval")

	return cfg
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing PinkFlow API")

	var tracer trace.Tracer

	if command.Bool("tracing") {
		t, shutdown, err := otelhelper.NewTracer(ctx, "pinkflow-api")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = t
	}

	engine, err := cmd.NewEngine(ctx, slog.Default(), cmd.EngineOptions{
		DatabaseURL:  command.String("database-url"),
		EventBus:     command.String("event-bus"),
		KafkaBrokers: command.StringSlice("kafka-brokers"),
		RedisURL:     command.String("redis-url"),
		ServicesFile: command.String("services-config"),
		PluginsPath:  command.String("plugins-path"),
		Config:       engineConfig(command),
		Tracer:       tracer,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize engine", "error", err)

		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), engine.Config.ShutdownTimeout)
		defer cancel()

		if err := engine.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown engine", "error", err)
		}
	}()

	if err := engine.Start(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to start engine", "error", err)

		return err
	}

	app := NewAPI(logger, engine).App()
	port := int(command.Int("port"))

	errCh := make(chan error, 1)

	go func() {
		errCh <- Listen(app, port)
	}()

	logger.InfoContext(ctx, "API server listening", "port", port)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("API server stopped", "error", err)
		}

		return err
	case <-ctx.Done():
		logger.Info("Shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return nil
}
