package handlers

import (
	"errors"
	"log/slog"

	"github.com/VincentPrime/endlessgrindbackend/internal/services"
	"github.com/gofiber/fiber/v2"
)

// mapServiceError turns a core error into the structured failure response.
func mapServiceError(c *fiber.Ctx, err error, fallback string) error {
	var validation *services.ValidationError
	var gateway *services.GatewayError

	switch {
	case errors.As(err, &validation):
		return fail(c, fiber.StatusBadRequest, validation.Error())
	case errors.Is(err, services.ErrInvalidInput):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		return fail(c, fiber.StatusUnauthorized, "Not allowed to act on this application")
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInvalidStateTransition):
		return fail(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &gateway):
		slog.ErrorContext(c.UserContext(), "payment gateway failure",
			"op", gateway.Op,
			"status", gateway.StatusCode,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Payment provider request failed",
			"error":   gatewayDetail(gateway),
		})
	default:
		slog.ErrorContext(c.UserContext(), fallback, "error", err)
		return fail(c, fiber.StatusInternalServerError, fallback)
	}
}

func gatewayDetail(err *services.GatewayError) any {
	if err.Detail != nil {
		return err.Detail
	}
	return err.Error()
}
