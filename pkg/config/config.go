// Package config holds the engine settings and loads the services file.
package config

import (
	"errors"
	"fmt"
	"time"
)

type (
	// Config holds the engine's tunables. Process settings (ports, URLs) live in CLI flags.
	Config struct {
		// Step execution
		StepTimeout time.Duration
		StepRetry   RetryConfig

		// Webhook delivery
		WebhookTimeout     time.Duration
		WebhookRetry       RetryConfig
		WebhookConcurrency int

		// Events
		DedupWindow time.Duration

		// UserActionTimeout fails a step left waiting for input longer than this. Zero waits forever.
		UserActionTimeout time.Duration

		// Sync
		SyncInterval time.Duration
		SyncRoutes   map[string]SyncRoute

		ShutdownTimeout time.Duration
	}

	// RetryConfig describes a bounded exponential backoff.
	RetryConfig struct {
		MaxAttempts     int
		InitialInterval time.Duration
		MaxInterval     time.Duration
		Multiplier      float64
	}

	// SyncRoute names the services a sync type fetches from and reconciles into.
	SyncRoute struct {
		Source Endpoint `yaml:"source"`
		Target Endpoint `yaml:"target"`
	}

	// Endpoint is a service action pair.
	Endpoint struct {
		Service string `yaml:"service"`
		Action  string `yaml:"action"`
	}
)

const (
	DefaultStepTimeout        = 30 * time.Second
	DefaultWebhookTimeout     = 10 * time.Second
	DefaultWebhookConcurrency = 8
	DefaultDedupWindow        = 24 * time.Hour
	DefaultSyncInterval       = 5 * time.Minute
	DefaultShutdownTimeout    = 10 * time.Second

	DefaultRetryAttempts   = 3
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second
	DefaultMultiplier      = 2.0
)

// Sync types known out of the box.
const (
	SyncTypeBusinessVR       = "business-vr"
	SyncTypePinksyncPlatform = "pinksync-platform"
	SyncTypeFull             = "full"
)

var (
	ErrInvalidStepTimeout       = errors.New("step timeout must be positive")
	ErrInvalidRetryAttempts     = errors.New("retry attempts must be at least 1")
	ErrInvalidRetryInterval     = errors.New("retry intervals must be positive")
	ErrRetryMaxIntervalTooSmall = errors.New("retry max interval must be >= initial interval")
	ErrInvalidMultiplier        = errors.New("retry multiplier must be >= 1")
	ErrInvalidWebhookTimeout    = errors.New("webhook timeout must be positive")
	ErrInvalidConcurrency       = errors.New("webhook concurrency must be positive")
	ErrInvalidDedupWindow       = errors.New("dedup window must be positive")
	ErrInvalidUserActionTimeout = errors.New("user action timeout cannot be negative")
	ErrInvalidSyncRoute         = errors.New("invalid sync route")
)

// NewDefaultConfig creates a configuration with the default engine settings.
func NewDefaultConfig() *Config {
	return &Config{
		StepTimeout:        DefaultStepTimeout,
		StepRetry:          DefaultRetryConfig(),
		WebhookTimeout:     DefaultWebhookTimeout,
		WebhookRetry:       DefaultRetryConfig(),
		WebhookConcurrency: DefaultWebhookConcurrency,
		DedupWindow:        DefaultDedupWindow,
		SyncInterval:       DefaultSyncInterval,
		SyncRoutes:         DefaultSyncRoutes(),
		ShutdownTimeout:    DefaultShutdownTimeout,
	}
}

// DefaultRetryConfig returns 3 attempts starting at 500ms, doubling up to 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     DefaultRetryAttempts,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		Multiplier:      DefaultMultiplier,
	}
}

// DefaultSyncRoutes returns the built-in sync types.
func DefaultSyncRoutes() map[string]SyncRoute {
	return map[string]SyncRoute{
		SyncTypeBusinessVR: {
			Source: Endpoint{Service: "northwest", Action: "fetch"},
			Target: Endpoint{Service: "v4deaf", Action: "reconcile"},
		},
		SyncTypePinksyncPlatform: {
			Source: Endpoint{Service: "pinksync", Action: "fetch"},
			Target: Endpoint{Service: "internal", Action: "reconcile"},
		},
		SyncTypeFull: {
			Source: Endpoint{Service: "internal", Action: "fetch"},
			Target: Endpoint{Service: "internal", Action: "reconcile"},
		},
	}
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.StepTimeout <= 0 {
		return ErrInvalidStepTimeout
	}

	if err := c.StepRetry.Validate(); err != nil {
		return fmt.Errorf("step retry: %w", err)
	}

	if c.WebhookTimeout <= 0 {
		return ErrInvalidWebhookTimeout
	}

	if err := c.WebhookRetry.Validate(); err != nil {
		return fmt.Errorf("webhook retry: %w", err)
	}

	if c.WebhookConcurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.DedupWindow <= 0 {
		return ErrInvalidDedupWindow
	}

	if c.UserActionTimeout < 0 {
		return ErrInvalidUserActionTimeout
	}

	for name, route := range c.SyncRoutes {
		if route.Source.Service == "" || route.Source.Action == "" ||
			route.Target.Service == "" || route.Target.Action == "" {
			return fmt.Errorf("%w: %s needs source and target service and action", ErrInvalidSyncRoute, name)
		}
	}

	return nil
}

// Validate checks the retry policy bounds.
func (r RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return ErrInvalidRetryAttempts
	}

	if r.InitialInterval <= 0 || r.MaxInterval <= 0 {
		return ErrInvalidRetryInterval
	}

	if r.MaxInterval < r.InitialInterval {
		return ErrRetryMaxIntervalTooSmall
	}

	if r.Multiplier < 1 {
		return ErrInvalidMultiplier
	}

	return nil
}
