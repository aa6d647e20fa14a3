package detectionHandler

import (
	"DetectionGateway/internal/api/detection"
	"DetectionGateway/internal/entity"
	contextPkg "DetectionGateway/pkg/context"
	"DetectionGateway/pkg/log"
	"github.com/gofiber/fiber/v2"
	"time"
)

func (h *DetectionHandler) Detect(ctx *fiber.Ctx) error {
	start := time.Now()
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)

	file, err := ctx.FormFile("image")
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"error":      err.Error(),
		}).Debug("No image field in request")
		return h.errHandler.Handle(ctx, requestID, detection.ErrNoImageFile, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id":   requestID,
		"path":         ctx.Path(),
		"file_name":    file.Filename,
		"file_size":    file.Size,
		"content_type": file.Header.Get("Content-Type"),
	}).Debug("Processing detection upload")

	result, err := h.detectionService.DetectUpload(c, file)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_upload")
	}

	return h.respondDetected(ctx, requestID, result, start)
}

func (h *DetectionHandler) DetectBase64(ctx *fiber.Ctx) error {
	start := time.Now()
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(ctx)

	var req detection.Base64DetectionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return h.errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(req); err != nil {
		return h.errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	result, err := h.detectionService.DetectBase64(c, req.ImageBase64)
	if err != nil {
		return h.errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_base64")
	}

	return h.respondDetected(ctx, requestID, result, start)
}

func (h *DetectionHandler) Health(ctx *fiber.Ctx) error {
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.HealthResponse{
		Status:         "healthy",
		Service:        detection.ServiceName,
		Timestamp:      detection.Timestamp(time.Now()),
		ModelReadiness: h.detectionService.Readiness(),
	})
}

func (h *DetectionHandler) ModelInfo(ctx *fiber.Ctx) error {
	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.ModelInfoResponse{
		Success:   true,
		Model:     h.detectionService.ModelInfo(),
		Timestamp: detection.Timestamp(time.Now()),
	})
}

func (h *DetectionHandler) respondDetected(ctx *fiber.Ctx, requestID string, result *entity.DetectionResult, start time.Time) error {
	response := detectedResponse(result, start)

	h.log.WithFields(log.Fields{
		"request_id":     requestID,
		"path":           ctx.Path(),
		"trash_detected": response.Result.TrashDetected,
		"detections":     len(response.Result.Detections),
		"process_time":   response.Result.ProcessTime,
	}).Info("Detection successful")

	return h.errHandler.HandleSuccess(ctx, fiber.StatusOK, response)
}

// detectedResponse copies result so the decoded value itself is never mutated.
func detectedResponse(result *entity.DetectionResult, start time.Time) detection.DetectResponse {
	timed := *result
	timed.ProcessTime = time.Since(start).Seconds()

	return detection.DetectResponse{
		Success:   true,
		Result:    timed,
		Timestamp: detection.Timestamp(time.Now()),
	}
}
