package detection

import (
	"DetectionGateway/pkg/response"
	"fmt"
	"net/http"
)

var (
	ErrNoImageFile           = response.NewError(http.StatusBadRequest, "No image file provided")
	ErrInvalidFileType       = response.NewError(http.StatusBadRequest, "Only image files are allowed")
	ErrFileTooLarge          = response.NewError(http.StatusBadRequest, "File too large")
	ErrInvalidImageData      = response.NewError(http.StatusBadRequest, "Invalid base64 image data")
	ErrModelProcessingFailed = response.NewError(http.StatusInternalServerError, "AI model processing failed")
)

// ResultParseError means the model exited cleanly but its output broke the
// result contract. Raw holds the captured standard output.
type ResultParseError struct {
	Raw string
	Err error
}

func (e *ResultParseError) Error() string {
	if e.Err == nil {
		return "failed to parse AI model output"
	}
	return fmt.Sprintf("failed to parse AI model output: %v", e.Err)
}

func (e *ResultParseError) Unwrap() error {
	return e.Err
}
