package detectionHandler

import (
	detectionService "DetectionGateway/internal/api/detection/service"
	"DetectionGateway/internal/middleware"
	"DetectionGateway/pkg/handlerUtil"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	errHandler       *handlerUtil.ErrorHandler
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
) *DetectionHandler {
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		errHandler:       handlerUtil.New(log),
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(wsRequestIDKey, h.middleware.GetRequestID(c))
			c.Locals(wsContextKey, c.UserContext())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	ai := srv.Group("/ai")

	ai.Post("/detect", h.Detect)
	ai.Post("/detect/base64", h.DetectBase64)
	ai.Use("/detect/ws", wsMiddleware)
	ai.Get("/detect/ws", websocket.New(h.handleDetectWebSocket))

	ai.Get("/health", h.Health)
	ai.Get("/model-info", h.ModelInfo)
}
