// Package executor runs one workflow step against its service adapter with timeout and retry.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/magicians360/pinkflow/pkg/config"
	"github.com/magicians360/pinkflow/pkg/metrics"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/otelhelper"
	"github.com/magicians360/pinkflow/pkg/protocol"
	"github.com/magicians360/pinkflow/pkg/registry"
	"github.com/magicians360/pinkflow/pkg/services"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PreviousParameter is the parameter key under which earlier step results are passed.
const PreviousParameter = "previous"

// ServiceResolver finds the adapter bound to a service name.
type ServiceResolver interface {
	Lookup(name string) (*registry.Service, bool)
}

// Invocation is one request to run a step.
type Invocation struct {
	WorkflowID      string
	Step            models.Step
	PreviousResults map[string]any
}

// Result is the outcome of an invocation. Err is a *services.ServiceError when set.
type Result struct {
	Output   map[string]any
	Attempts int
	Duration time.Duration
	Err      error
}

type Executor struct {
	resolver ServiceResolver
	logger   *slog.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	retry    config.RetryConfig
}

func NewExecutor(resolver ServiceResolver, cfg *config.Config, logger *slog.Logger, tracer trace.Tracer) *Executor {
	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Executor{
		resolver: resolver,
		logger:   logger.With("module", "executor"),
		tracer:   tracer,
		timeout:  cfg.StepTimeout,
		retry:    cfg.StepRetry,
	}
}

// Execute invokes the step's service action. It never mutates workflow state.
func (e *Executor) Execute(ctx context.Context, inv Invocation) Result {
	step := inv.Step
	op := "executor.Execute"

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.execute",
		attribute.String(otelhelper.WorkflowIDKey, inv.WorkflowID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.ServiceKey, step.Service),
		attribute.String(otelhelper.ActionKey, step.Action),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", inv.WorkflowID, "step_id", step.ID, "service", step.Service, "action", step.Action)
	start := time.Now()

	result := e.execute(ctx, op, inv, logger)
	result.Duration = time.Since(start)

	span.SetAttributes(attribute.Int(otelhelper.AttemptsKey, result.Attempts))
	metrics.StepDuration.WithLabelValues(step.Service).Observe(result.Duration.Seconds())
	metrics.StepExecutionsTotal.WithLabelValues(step.Service, outcomeOf(result.Err)).Inc()

	if result.Err != nil {
		otelhelper.SetError(span, result.Err)
		logger.WarnContext(ctx, "Step execution failed", "attempts", result.Attempts, "error", result.Err)
	} else {
		logger.DebugContext(ctx, "Step executed", "attempts", result.Attempts, "duration", result.Duration)
	}

	return result
}

func (e *Executor) execute(ctx context.Context, op string, inv Invocation, logger *slog.Logger) Result {
	step := inv.Step

	service, ok := e.resolver.Lookup(step.Service)
	if !ok {
		return Result{Err: services.NewTerminalServiceError(op, fmt.Errorf("unknown service '%s'", step.Service))}
	}

	if !service.SupportsAction(step.Action) {
		return Result{Err: services.NewValidationError(op,
			fmt.Sprintf("service '%s' does not support action '%s'", step.Service, step.Action))}
	}

	if err := validateParameters(service.ParametersSchema(step.Action), step.Parameters); err != nil {
		return Result{Err: services.NewValidationError(op, err.Error())}
	}

	params := buildParameters(step.Parameters, inv.PreviousResults)

	var (
		output   map[string]any
		attempts int
	)

	operation := func() error {
		attempts++

		metrics.StepAttemptsTotal.WithLabelValues(step.Service).Inc()

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		out, err := service.Adapter.Invoke(attemptCtx, step.Action, params)
		if err == nil {
			output = out

			return nil
		}

		classified := classify(ctx, op, err)
		if services.IsTransient(classified) {
			return classified
		}

		return backoff.Permanent(classified)
	}

	notify := func(err error, wait time.Duration) {
		logger.InfoContext(ctx, "Retrying step", "attempt", attempts, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, e.newBackOff(ctx), notify)
	if err != nil {
		var serviceErr *services.ServiceError
		if !errors.As(err, &serviceErr) {
			err = classify(ctx, op, err)
		}

		return Result{Attempts: attempts, Err: err}
	}

	if output == nil {
		output = map[string]any{}
	}

	return Result{Output: output, Attempts: attempts}
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialInterval
	b.MaxInterval = e.retry.MaxInterval
	b.Multiplier = e.retry.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()

	retries := e.retry.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// classify converts an adapter error into a transient or terminal service error.
func classify(ctx context.Context, op string, err error) error {
	var serviceErr *services.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	if ctx.Err() != nil {
		return services.NewTerminalServiceError(op, fmt.Errorf("step cancelled: %w", ctx.Err()))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return services.NewTransientServiceError(op, fmt.Errorf("attempt timed out: %w", err))
	}

	var statusErr *protocol.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Retryable() {
			return services.NewTransientServiceError(op, err)
		}

		return services.NewTerminalServiceError(op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return services.NewTransientServiceError(op, err)
	}

	return services.NewTerminalServiceError(op, err)
}

func validateParameters(schema *gojsonschema.Schema, params map[string]any) error {
	if schema == nil {
		return nil
	}

	if params == nil {
		params = map[string]any{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("failed to validate parameters: %w", err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return fmt.Errorf("invalid parameters: %s", strings.Join(messages, "; "))
}

func buildParameters(params map[string]any, previous map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}

	if len(previous) > 0 {
		out[PreviousParameter] = previous
	}

	return out
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case services.IsValidationError(err):
		return metrics.OutcomeValidation
	case services.IsTransient(err):
		return metrics.OutcomeTransient
	default:
		return metrics.OutcomeTerminal
	}
}
