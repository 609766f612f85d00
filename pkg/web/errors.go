package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/magicians360/pinkflow/pkg/services"
	"github.com/moogar0880/problems"
)

const codeInternal = "internal_error"

func errorResponse(c fiber.Ctx, status int, code, message string) error {
	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(code).
		WithDetail(message)

	return c.Status(status).JSON(ErrorResponse{
		Problem: problem,
		Status:  StatusError,
		Code:    status,
		Error:   code,
		Message: message,
	})
}

func badRequest(c fiber.Ctx, message string) error {
	return errorResponse(c, fiber.StatusBadRequest, services.CodeValidation, message)
}

// handleServiceError maps service error kinds onto HTTP statuses.
func (h *APIHandlers) handleServiceError(c fiber.Ctx, err error) error {
	message := err.Error()

	var serviceErr *services.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		message = serviceErr.Message
	}

	switch {
	case services.IsValidationError(err):
		return errorResponse(c, fiber.StatusBadRequest, services.CodeValidation, message)
	case services.IsNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, services.CodeNotFound, message)
	case services.IsInvalidState(err):
		return errorResponse(c, fiber.StatusConflict, services.CodeInvalidState, message)
	default:
		h.logger.ErrorContext(c.Context(), "Request failed", "method", c.Method(), "path", c.Path(), "error", err)

		return errorResponse(c, fiber.StatusInternalServerError, codeInternal, "internal server error")
	}
}
