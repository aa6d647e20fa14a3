package middleware

import (
	contextPkg "DetectionGateway/pkg/context"
	"DetectionGateway/pkg/utils"
	"context"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Middleware interface {
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	NewBaseContextMiddleware(base context.Context) fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type middleware struct {
	loggingMiddleware   *loggingMiddleware
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, u utils.IUtils) Middleware {
	logging := newLoggingMiddleware(logger)
	requestID := NewRequestIDMiddleware(u)

	return &middleware{
		loggingMiddleware:   logging,
		requestIDMiddleware: requestID,
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return m.loggingMiddleware.handle
}

// NewBaseContextMiddleware roots every request context in base, so cancelling
// base at shutdown terminates in-flight model processes.
func (m *middleware) NewBaseContextMiddleware(base context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(contextPkg.WithRequestID(base, m.GetRequestID(c)))
		return c.Next()
	}
}
