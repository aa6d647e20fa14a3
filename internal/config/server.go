package config

import (
	detectionHandler "DetectionGateway/internal/api/detection/handler"
	detectionService "DetectionGateway/internal/api/detection/service"
	"DetectionGateway/internal/middleware"
	"DetectionGateway/pkg/invoker"
	"DetectionGateway/pkg/readiness"
	"DetectionGateway/pkg/redis"
	"DetectionGateway/pkg/staging"
	"DetectionGateway/pkg/utils"
	"context"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"time"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	gateway     *GatewayConfig
	resultCache redis.IRedis
	invoker     invoker.IInvoker
	handlers    []handler

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.gateway == nil {
		return nil, fmt.Errorf("gateway config is required")
	}
	if server.validator == nil {
		server.validator = validator.New()
	}
	if server.utils == nil {
		server.utils = utils.NewWithMaxFileSize(server.gateway.MaxUploadSize)
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, server.utils)
	}

	server.baseCtx, server.cancelBase = context.WithCancel(context.Background())

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithGatewayConfig(cfg *GatewayConfig) ServerOption {
	return func(s *Server) error {
		if cfg == nil {
			return fmt.Errorf("gateway config must not be nil")
		}
		s.gateway = cfg
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.gateway == nil {
			return fmt.Errorf("gateway config must be set before utils")
		}
		s.utils = utils.NewWithMaxFileSize(s.gateway.MaxUploadSize)
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.utils == nil {
			if s.gateway == nil {
				return fmt.Errorf("gateway config must be set before middleware")
			}
			s.utils = utils.NewWithMaxFileSize(s.gateway.MaxUploadSize)
		}
		s.middleware = middleware.New(s.log, s.utils)
		return nil
	}
}

// WithResultCache enables the Redis result cache when an address is
// configured and is a no-op otherwise.
func WithResultCache() ServerOption {
	return func(s *Server) error {
		if s.gateway == nil || s.gateway.RedisAddress == "" {
			return nil
		}
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before result cache")
		}

		cache, err := redis.New(redis.Options{
			Address:  s.gateway.RedisAddress,
			Password: s.gateway.RedisPassword,
			DB:       s.gateway.RedisDB,
			TTL:      s.gateway.ResultCacheTTL,
		}, s.log)
		if err != nil {
			s.log.Errorf("Failed to create result cache: %v", err)
			return fmt.Errorf("failed to create result cache: %w", err)
		}
		s.resultCache = cache
		return nil
	}
}

// WithModelInvoker replaces the subprocess invoker built from the gateway
// config.
func WithModelInvoker(modelInvoker invoker.IInvoker) ServerOption {
	return func(s *Server) error {
		if modelInvoker == nil {
			return fmt.Errorf("model invoker must not be nil")
		}
		s.invoker = modelInvoker
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Detection
	stager := staging.New(s.gateway.StagingDir, s.gateway.MaxUploadSize)
	modelInvoker := s.invoker
	if modelInvoker == nil {
		modelInvoker = invoker.New(invoker.Config{
			Interpreter: s.gateway.Interpreter,
			Script:      s.gateway.Script,
			Subcommand:  s.gateway.Subcommand,
			WorkDir:     s.gateway.WorkDir,
			Timeout:     s.gateway.Timeout,
		}, s.log)
	}
	prober := readiness.New(readiness.Artifacts{
		Interpreter: s.gateway.Interpreter,
		Script:      s.gateway.Script,
		Weights:     s.gateway.Weights,
	})
	decoder := detectionService.NewResultDecoder(s.validator)

	detectionServices := detectionService.NewDetectionService(s.log, s.utils, stager, modelInvoker, decoder, prober, s.resultCache)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices)

	s.setupMiddleware()
	s.setupHealthCheck()
	s.handlers = append(s.handlers, detectionHandlers)

	router := s.engine.Group("/api")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

// App exposes the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.engine
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.gateway.Port)
	s.log.Infof("Listening on %s", addr)

	return s.engine.Listen(addr)
}

// Shutdown cancels in-flight detections, then drains the HTTP server.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancelBase()

	err := s.engine.ShutdownWithTimeout(timeout)

	if s.resultCache != nil {
		if cacheErr := s.resultCache.Close(); cacheErr != nil {
			s.log.Errorf("Error closing result cache: %v", cacheErr)
		}
	}

	return err
}

func (s *Server) setupMiddleware() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(recover.New())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins: s.gateway.CORSAllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + middleware.RequestIDKey,
	}))
	s.engine.Use(s.middleware.NewBaseContextMiddleware(s.baseCtx))
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}
