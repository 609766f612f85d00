// Package protocol defines the interfaces and contracts for pluggable service adapters.
package protocol

import (
	"context"
	"fmt"
)

// Adapter invokes actions on one external service.
type Adapter interface {
	// Invoke runs action with parameters and returns the service's result payload.
	// Implementations must honor ctx cancellation.
	Invoke(ctx context.Context, action string, parameters map[string]any) (map[string]any, error)
}

// HealthChecker is implemented by adapters that can report whether their service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// AdapterFactory creates adapters of one kind from service configuration.
type AdapterFactory interface {
	// Create creates a new adapter instance with the given configuration
	Create(config map[string]any) (Adapter, error)

	// ID returns the unique identifier for this adapter kind, referenced by service definitions
	ID() string

	// Name returns the human-readable name for this adapter kind
	Name() string

	// Description returns a description of what this adapter does
	Description() string

	// Schema returns the JSON schema for configuring this adapter
	Schema() map[string]any
}

// StatusError reports a non-success status returned by a remote service.
// 5xx and 429 are considered retryable, everything else is permanent.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, action string, parameters map[string]any) (map[string]any, error)

func (f AdapterFunc) Invoke(ctx context.Context, action string, parameters map[string]any) (map[string]any, error) {
	return f(ctx, action, parameters)
}
