package handlers

import (
	"context"

	"github.com/VincentPrime/endlessgrindbackend/internal/models"
	"github.com/VincentPrime/endlessgrindbackend/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ApplicationHandler struct {
	service applicationLifecycleService
}

type applicationLifecycleService interface {
	Submit(ctx context.Context, actor services.Actor, input services.SubmitApplicationInput) (*services.SubmitResult, error)
	Cancel(ctx context.Context, actor services.Actor, applicationID int64) (*services.CancelResult, error)
	AdminCancel(ctx context.Context, actor services.Actor, applicationID int64) (*services.CancelResult, error)
	Approve(ctx context.Context, actor services.Actor, applicationID int64) (*models.Application, error)
	Decline(ctx context.Context, actor services.Actor, applicationID int64) (*services.CancelResult, error)
	GetMyApplication(ctx context.Context, actor services.Actor) (*models.ApplicationDetail, error)
}

func NewApplicationHandler(service *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

type submitApplicationRequest struct {
	PackageID      int64    `json:"package_id"`
	CoachID        int64    `json:"coach_id"`
	Name           string   `json:"name"`
	Nickname       *string  `json:"nickname"`
	Sex            string   `json:"sex"`
	Age            int      `json:"age"`
	DateOfBirth    string   `json:"date_of_birth"`
	Email          string   `json:"email"`
	Facebook       *string  `json:"facebook"`
	Address        *string  `json:"address"`
	Goal           string   `json:"goal"`
	Weight         *float64 `json:"weight"`
	Height         *float64 `json:"height"`
	WaiverAccepted bool     `json:"waiver_accepted"`
}

func (h *ApplicationHandler) Submit(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	var req submitApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	result, err := h.service.Submit(c.UserContext(), actor, services.SubmitApplicationInput{
		PackageID:      req.PackageID,
		CoachID:        req.CoachID,
		Name:           req.Name,
		Nickname:       req.Nickname,
		Sex:            req.Sex,
		Age:            req.Age,
		DateOfBirth:    req.DateOfBirth,
		Email:          req.Email,
		Facebook:       req.Facebook,
		Address:        req.Address,
		Goal:           req.Goal,
		Weight:         req.Weight,
		Height:         req.Height,
		WaiverAccepted: req.WaiverAccepted,
	})
	if err != nil {
		return mapServiceError(c, err, "Failed to submit application")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":        true,
		"message":        "Application submitted. Complete the payment to continue.",
		"application_id": result.ApplicationID,
		"payment_url":    result.PaymentURL,
		"amount":         result.Amount,
		"amount_minor":   result.AmountMinor,
	})
}

func (h *ApplicationHandler) GetMine(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}

	application, err := h.service.GetMyApplication(c.UserContext(), actor)
	if err != nil {
		return mapServiceError(c, err, "Failed to fetch application")
	}

	return c.JSON(fiber.Map{"success": true, "application": application})
}

func (h *ApplicationHandler) Cancel(c *fiber.Ctx) error {
	return h.cancel(c, h.service.Cancel, "Application cancelled")
}

func (h *ApplicationHandler) AdminCancel(c *fiber.Ctx) error {
	return h.cancel(c, h.service.AdminCancel, "Application cancelled by staff")
}

func (h *ApplicationHandler) cancel(
	c *fiber.Ctx,
	op func(ctx context.Context, actor services.Actor, applicationID int64) (*services.CancelResult, error),
	message string,
) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid application id")
	}

	result, err := op(c.UserContext(), actor, applicationID)
	if err != nil {
		return mapServiceError(c, err, "Failed to cancel application")
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"message":          message,
		"refund_initiated": result.RefundInitiated,
	})
}

func (h *ApplicationHandler) Approve(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid application id")
	}

	application, err := h.service.Approve(c.UserContext(), actor, applicationID)
	if err != nil {
		return mapServiceError(c, err, "Failed to approve application")
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"message":     "Application approved",
		"application": application,
	})
}

func (h *ApplicationHandler) Decline(c *fiber.Ctx) error {
	actor, err := parseActor(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Invalid token")
	}
	applicationID, ok := parseIDParam(c, "id")
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid application id")
	}

	result, err := h.service.Decline(c.UserContext(), actor, applicationID)
	if err != nil {
		return mapServiceError(c, err, "Failed to decline application")
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"message":          "Application declined",
		"refund_initiated": result.RefundInitiated,
	})
}
