package config

import (
	"DetectionGateway/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// multipartOverhead leaves room for boundaries and part headers on top of the
// image ceiling, so oversize images reach the upload check and get a 400.
const multipartOverhead = 2 * 1024 * 1024

func NewFiber(logger *logrus.Logger, maxUploadSize int64) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "AI Detection API",
			BodyLimit:         int(maxUploadSize*4/3) + multipartOverhead,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: false,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      newErrorHandler(logger),
		})

	return app
}

func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		if code >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"path":  c.Path(),
				"error": err.Error(),
			}).Error("Unhandled error")
		}

		return c.Status(code).JSON(response.Envelope{
			Success: false,
			Error:   err.Error(),
		})
	}
}
