package handlers

import (
	"strconv"

	"github.com/VincentPrime/endlessgrindbackend/internal/services"
	"github.com/gofiber/fiber/v2"
)

func parseActor(c *fiber.Ctx) (services.Actor, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return services.Actor{}, strconv.ErrSyntax
	}
	role, ok := c.Locals("role").(string)
	if !ok || role == "" {
		return services.Actor{}, strconv.ErrSyntax
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		return services.Actor{}, strconv.ErrSyntax
	}
	return services.Actor{UserID: userID, Role: role}, nil
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": message})
}
