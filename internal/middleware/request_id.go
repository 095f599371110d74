package middleware

import (
	"github.com/VincentPrime/endlessgrindbackend/internal/logging"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when it is a
// valid uuid, and carries it on the fiber user context for logging.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		c.Locals("request_id", requestID)
		c.Set(RequestIDHeader, requestID)
		c.SetUserContext(logging.WithRequestID(c.UserContext(), requestID))
		return c.Next()
	}
}
