package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/magicians360/pinkflow/pkg/config"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "pinkflow-api",
		Usage:                 "Run PinkFlow workflows, events, syncs and webhooks",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (memory://, file://<dir>, postgres://, redis://)",
				Value:   "memory://",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers, used when the event bus is kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for idempotency keys when persistence is not redis",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "services-config",
				Usage:   "Path to the services.yaml declaring services, sync routes and auto syncs",
				Sources: cli.EnvVars("SERVICES_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing adapter plugins",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.DurationFlag{
				Name:    "step-timeout",
				Usage:   "Timeout of a single adapter call",
				Value:   config.DefaultStepTimeout,
				Sources: cli.EnvVars("STEP_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "user-action-timeout",
				Usage:   "Fail steps waiting for user action longer than this (0 waits forever)",
				Sources: cli.EnvVars("USER_ACTION_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "dedup-window",
				Usage:   "How long idempotency keys are remembered",
				Value:   config.DefaultDedupWindow,
				Sources: cli.EnvVars("DEDUP_WINDOW"),
			},
			&cli.DurationFlag{
				Name:    "sync-interval",
				Usage:   "Interval of auto syncs without their own schedule",
				Value:   config.DefaultSyncInterval,
				Sources: cli.EnvVars("SYNC_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP (configured with OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := command.Run(ctx, os.Args)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
