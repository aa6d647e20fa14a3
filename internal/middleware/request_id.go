package middleware

import (
	contextPkg "DetectionGateway/pkg/context"
	"DetectionGateway/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"time"
)

const RequestIDKey = contextPkg.RequestIDHeader

func NewRequestIDMiddleware(u utils.IUtils) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if requestID == "" {
			requestID, _ = u.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
