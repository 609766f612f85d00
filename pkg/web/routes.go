package web

import "github.com/gofiber/fiber/v3"

// Mount registers every API route on router.
func (h *APIHandlers) Mount(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Post("/:id/start", h.StartWorkflow)
	w.Post("/:id/cancel", h.CancelWorkflow)
	w.Patch("/:id/steps/:stepId", h.UpdateStep)

	e := router.Group("/events")
	e.Get("/", h.GetEvents)
	e.Post("/", h.IngestEvent)
	e.Get("/:id", h.GetEvent)

	s := router.Group("/sync")
	s.Get("/status/:id", h.GetSyncStatus)
	s.Post("/:type", h.Sync)

	wh := router.Group("/webhooks")
	wh.Get("/", h.GetWebhooks)
	wh.Post("/", h.RegisterWebhook)
	wh.Post("/register", h.RegisterWebhook)
	wh.Delete("/:id", h.DeleteWebhook)

	router.Get("/integrations", h.GetIntegrations)
	router.Post("/integrations/:integrationId/connect", h.ConnectIntegration)

	router.Get("/health", h.HealthCheck)
	router.Get("/health/detailed", h.DetailedHealthCheck)
}
