package handlers

import (
	"context"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type TrainingHandler struct {
	service trainingService
}

type trainingService interface {
	LogSession(ctx context.Context, actor services.Actor, applicationID int64, input services.LogSessionInput) (*services.TrainingSessionResult, error)
	CompleteProgram(ctx context.Context, actor services.Actor, applicationID int64) (*models.Application, error)
	SessionHistory(ctx context.Context, actor services.Actor, applicationID int64) ([]models.TrainingSession, error)
}

func NewTrainingHandler(service *services.TrainingService) *TrainingHandler {
	return &TrainingHandler{service: service}
}

type logSessionRequest struct {
	Weight *float64 `json:"user_weight"`
	Notes  *string  `json:"notes"`
}

func (h *TrainingHandler) LogSession(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	applicationID, ok := parseIDParam(c, "application_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid application id")
	}

	var req logSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	result, err := h.service.LogSession(c.UserContext(), actor, applicationID, services.LogSessionInput{
		Weight: req.Weight,
		Notes:  req.Notes,
	})
	if err != nil {
		return mapServiceError(c, err, "Failed to log session")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":         true,
		"message":         "Session logged",
		"session":         result.Session,
		"training_status": result.TrainingStatus,
	})
}

func (h *TrainingHandler) CompleteProgram(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	applicationID, ok := parseIDParam(c, "application_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid application id")
	}

	application, err := h.service.CompleteProgram(c.UserContext(), actor, applicationID)
	if err != nil {
		return mapServiceError(c, err, "Failed to complete program")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Program completed",
		"application": application,
	})
}

func (h *TrainingHandler) SessionHistory(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	applicationID, ok := parseIDParam(c, "application_id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid application id")
	}

	sessions, err := h.service.SessionHistory(c.UserContext(), actor, applicationID)
	if err != nil {
		return mapServiceError(c, err, "Failed to fetch sessions")
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}
