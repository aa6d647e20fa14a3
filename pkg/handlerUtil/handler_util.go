package handlerUtil

import (
	"DetectionGateway/internal/api/detection"
	"DetectionGateway/pkg/invoker"
	"DetectionGateway/pkg/log"
	"DetectionGateway/pkg/response"
	"errors"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Envelope classifies err into the response body and status code shared by
// the HTTP and websocket detection endpoints.
func (h *ErrorHandler) Envelope(requestID string, err error, path string, operation string) (int, response.Envelope) {
	var respErr *response.Error
	if errors.As(err, &respErr) && respErr.Code < fiber.StatusInternalServerError {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Rejected detection input")
		return respErr.Code, response.Envelope{Success: false, Error: respErr.Error()}
	}

	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}
	env := response.Envelope{
		Success: false,
		Error:   detection.ErrModelProcessingFailed.Error(),
		Details: err.Error(),
	}

	var (
		unavailable *invoker.UnavailableError
		execution   *invoker.ExecutionError
		timeout     *invoker.TimeoutError
		parse       *detection.ResultParseError
	)
	switch {
	case errors.As(err, &unavailable):
		fields["kind"] = "model_unavailable"
	case errors.As(err, &execution):
		fields["kind"] = "model_execution"
		fields["exit_code"] = execution.ExitCode
		fields["stderr"] = execution.Stderr
		exitCode := execution.ExitCode
		env.ExitCode = &exitCode
	case errors.As(err, &timeout):
		fields["kind"] = "model_timeout"
	case errors.As(err, &parse):
		fields["kind"] = "result_parse"
		fields["raw_output"] = parse.Raw
	case errors.Is(err, invoker.ErrCanceled):
		fields["kind"] = "model_canceled"
	default:
		fields["kind"] = "unexpected"
	}

	log.ErrorWithTraceID(h.logger, fields, "AI model processing failed")

	return fiber.StatusInternalServerError, env
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, env := h.Envelope(requestID, err, path, operation)
	return c.Status(status).JSON(env)
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(response.Envelope{
		Success: false,
		Error:   "Validation failed: " + err.Error(),
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
