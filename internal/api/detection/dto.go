package detection

import (
	"DetectionGateway/internal/entity"
	"time"
)

// TimestampLayout matches the millisecond ISO-8601 form browsers produce.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

const ServiceName = "AI Detection API"

type Base64DetectionRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
}

type DetectResponse struct {
	Success   bool                   `json:"success"`
	Result    entity.DetectionResult `json:"result"`
	Timestamp string                 `json:"timestamp"`
}

type HealthResponse struct {
	Status         string                 `json:"status"`
	Service        string                 `json:"service"`
	Timestamp      string                 `json:"timestamp"`
	ModelReadiness entity.ReadinessReport `json:"model_readiness"`
}

type ModelInfoResponse struct {
	Success   bool                 `json:"success"`
	Model     entity.ModelMetadata `json:"model"`
	Timestamp string               `json:"timestamp"`
}

func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
