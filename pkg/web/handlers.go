package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/magicians360/pinkflow/pkg/coordinator"
	"github.com/magicians360/pinkflow/pkg/ingestion"
	"github.com/magicians360/pinkflow/pkg/models"
	"github.com/magicians360/pinkflow/pkg/persistence"
	"github.com/magicians360/pinkflow/pkg/registry"
	"github.com/magicians360/pinkflow/pkg/webhooks"
	"github.com/magicians360/pinkflow/pkg/workflow"
)

// HeaderUserID carries the caller identity set by the upstream auth layer.
const HeaderUserID = "X-User-ID"

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	workflows   *workflow.Manager
	events      *ingestion.Queue
	coordinator *coordinator.Coordinator
	webhooks    *webhooks.Dispatcher
	registry    *registry.Registry
	store       HealthChecker
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	workflows *workflow.Manager,
	events *ingestion.Queue,
	coordinator *coordinator.Coordinator,
	webhooks *webhooks.Dispatcher,
	registry *registry.Registry,
	store HealthChecker,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflows:   workflows,
		events:      events,
		coordinator: coordinator,
		webhooks:    webhooks,
		registry:    registry,
		store:       store,
		validator:   validator,
		logger:      logger.With("module", "web"),
	}
}

// bind decodes and validates a JSON body. It writes the 400 response itself and
// reports false when the request must stop.
func (h *APIHandlers) bind(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return false, badRequest(c, err.Error())
	}

	return true, nil
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	filter := persistence.WorkflowFilter{
		Status: models.WorkflowStatus(c.Query("status")),
		Owner:  c.Query("owner"),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		return badRequest(c, "unknown workflow status "+string(filter.Status))
	}

	page, err := pageParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	workflows, err := h.workflows.List(c.Context(), filter)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	workflows, page = paginateWorkflows(workflows, page)

	return c.JSON(fiber.Map{"status": StatusSuccess, "workflows": workflows, "pagination": page})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	owner := req.Owner
	if owner == "" {
		owner = c.Get(HeaderUserID)
	}

	created, err := h.workflows.Create(c.Context(), workflow.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Owner:       owner,
		Steps:       req.Steps,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": StatusSuccess, "workflow": created})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.workflows.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "workflow": wf})
}

func (h *APIHandlers) StartWorkflow(c fiber.Ctx) error {
	wf, err := h.workflows.Start(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "workflow": wf})
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	var req CancelWorkflowRequest

	if len(c.Body()) > 0 {
		if ok, err := h.bind(c, &req); !ok {
			return err
		}
	}

	wf, err := h.workflows.Cancel(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "workflow": wf})
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	var req UpdateStepRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	status := req.Status
	if status == "" {
		status = models.StepStatusCompleted
		if req.Error != "" {
			status = models.StepStatusFailed
		}
	}

	ctx := c.Context()
	id, stepID := c.Params("id"), c.Params("stepId")

	var (
		step *models.Step
		err  error
	)

	switch status {
	case models.StepStatusFailed:
		step, err = h.workflows.Fail(ctx, id, stepID, req.Error)
	case models.StepStatusSkipped:
		step, err = h.workflows.Skip(ctx, id, stepID)
	default:
		step, err = h.workflows.Advance(ctx, id, stepID, req.Result)
	}

	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "step": step})
}

func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req ingestion.IngestRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	event, outcome, err := h.events.Ingest(c.Context(), req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": StatusSuccess, "event": event, "outcome": outcome})
}

func (h *APIHandlers) GetEvents(c fiber.Ctx) error {
	filter := persistence.EventFilter{
		Status:    models.ProcessingStatus(c.Query("status")),
		EventType: c.Query("type"),
	}

	events, err := h.events.List(c.Context(), filter)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "events": events, "filter": filter})
}

func (h *APIHandlers) GetEvent(c fiber.Ctx) error {
	event, err := h.events.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "event": event})
}

func (h *APIHandlers) Sync(c fiber.Ctx) error {
	var req SyncRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	operation, err := h.coordinator.Sync(c.Context(), c.Params("type"), req.SourceID, req.TargetID)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "syncOperation": operation})
}

func (h *APIHandlers) GetSyncStatus(c fiber.Ctx) error {
	operation, err := h.coordinator.Get(c.Context(), c.Params("id"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "syncOperation": operation})
}

func (h *APIHandlers) RegisterWebhook(c fiber.Ctx) error {
	var req webhooks.RegisterRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	registration, err := h.webhooks.Register(c.Context(), req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": StatusSuccess, "webhook": registration})
}

func (h *APIHandlers) GetWebhooks(c fiber.Ctx) error {
	registrations, err := h.webhooks.List(c.Context())
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "webhooks": registrations})
}

func (h *APIHandlers) DeleteWebhook(c fiber.Ctx) error {
	id := c.Params("id")

	if err := h.webhooks.Delete(c.Context(), id); err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "id": id})
}

func (h *APIHandlers) GetIntegrations(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": StatusSuccess, "integrations": h.registry.Integrations(c.Context())})
}

// ConnectIntegration probes a registered integration and reports whether it is reachable.
func (h *APIHandlers) ConnectIntegration(c fiber.Ctx) error {
	integration, err := h.registry.Connect(c.Context(), c.Params("integrationId"))
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": StatusSuccess, "connection": integration})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "pinkflow",
		"timestamp": time.Now().UTC(),
	})
}

// DetailedHealthCheck reports the store and every registered integration. Only the store
// decides the HTTP status; a disconnected integration is reported but tolerated.
func (h *APIHandlers) DetailedHealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	storeCheck := fiber.Map{"status": "healthy"}

	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		storeCheck = fiber.Map{"status": "unhealthy", "error": err.Error()}
	}

	integrations := h.registry.Integrations(c.Context())

	for _, integration := range integrations {
		if integration.Status != models.IntegrationConnected && status == "healthy" {
			status = "degraded"
		}
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"store":        storeCheck,
			"integrations": integrations,
		},
		"timestamp": time.Now().UTC(),
	})
}

// Ready reports whether the store answers. Used by the readiness probe.
func (h *APIHandlers) Ready(c fiber.Ctx) bool {
	return h.store.HealthCheck(c.Context()) == nil
}
