// Package builtin provides the "internal" adapter used for platform-local steps.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magicians360/pinkflow/pkg/protocol"
)

const (
	ActionFetch     = "fetch"
	ActionReconcile = "reconcile"
	ActionEcho      = "echo"
	ActionLog       = "log"
)

// Actions lists every action the internal adapter understands.
var Actions = []string{ActionFetch, ActionReconcile, ActionEcho, ActionLog}

// Adapter runs actions in-process.
type Adapter struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{
		logger: logger.With("module", "builtin_adapter"),
		now:    time.Now,
	}
}

func (a *Adapter) Invoke(ctx context.Context, action string, parameters map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch action {
	case ActionFetch:
		return a.fetch(parameters)
	case ActionReconcile:
		return a.reconcile(parameters)
	case ActionEcho:
		return copyParameters(parameters), nil
	case ActionLog:
		a.logger.InfoContext(ctx, "Step log", "parameters", parameters)

		return map[string]any{"logged": true}, nil
	default:
		return nil, fmt.Errorf("unsupported action '%s'", action)
	}
}

// Ping always succeeds; the adapter has no remote side.
func (a *Adapter) Ping(context.Context) error {
	return nil
}

// fetch returns a snapshot reference for the source record.
func (a *Adapter) fetch(parameters map[string]any) (map[string]any, error) {
	sourceID, _ := parameters["sourceId"].(string)
	if sourceID == "" {
		return nil, fmt.Errorf("fetch requires 'sourceId'")
	}

	return map[string]any{
		"sourceId":  sourceID,
		"fetchedAt": a.now().UTC().Format(time.RFC3339Nano),
		"record":    copyParameters(parameters),
	}, nil
}

// reconcile merges the results of previous steps into the target record.
func (a *Adapter) reconcile(parameters map[string]any) (map[string]any, error) {
	targetID, _ := parameters["targetId"].(string)
	if targetID == "" {
		return nil, fmt.Errorf("reconcile requires 'targetId'")
	}

	merged := map[string]any{}

	if previous, ok := parameters["previous"].(map[string]any); ok {
		for stepID, result := range previous {
			merged[stepID] = result
		}
	}

	return map[string]any{
		"targetId":     targetID,
		"reconciled":   true,
		"reconciledAt": a.now().UTC().Format(time.RFC3339Nano),
		"merged":       merged,
	}, nil
}

func copyParameters(parameters map[string]any) map[string]any {
	out := make(map[string]any, len(parameters))
	for k, v := range parameters {
		out[k] = v
	}

	return out
}

// Factory creates internal adapters.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) protocol.AdapterFactory {
	return &Factory{logger: logger}
}

func (f *Factory) Create(map[string]any) (protocol.Adapter, error) {
	return NewAdapter(f.logger), nil
}

func (f *Factory) ID() string {
	return "internal"
}

func (f *Factory) Name() string {
	return "Internal"
}

func (f *Factory) Description() string {
	return "Runs platform-local actions: fetch, reconcile, echo and log"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
