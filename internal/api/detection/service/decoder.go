package detectionService

import (
	"DetectionGateway/internal/api/detection"
	"DetectionGateway/internal/entity"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

const (
	legacyPositiveConfidence = 0.75
	legacyNegativeConfidence = 0.25
)

var legacyPlaceholderBBox = []float64{100, 100, 200, 200}

// IResultDecoder turns captured model stdout into a DetectionResult. Callers
// only see this interface so the output dialects can be replaced in one place.
type IResultDecoder interface {
	Decode(output string) (*entity.DetectionResult, error)
}

type resultDecoder struct {
	json      jsoniter.API
	validator *validator.Validate
}

func NewResultDecoder(validate *validator.Validate) IResultDecoder {
	if validate == nil {
		validate = validator.New()
	}
	return &resultDecoder{
		json:      jsoniter.ConfigCompatibleWithStandardLibrary,
		validator: validate,
	}
}

func (d *resultDecoder) Decode(output string) (*entity.DetectionResult, error) {
	// Empty output reads as the legacy negative.
	line := resultLine(output)

	if strings.HasPrefix(line, "{") {
		return d.decodeStructured(line, output)
	}

	return decodeLegacy(line), nil
}

// resultLine returns the last line of the trimmed output; earlier lines are
// diagnostics. Indentation on a trailing line is kept, so it does not count
// as a JSON result.
func resultLine(output string) string {
	trimmed := strings.TrimSpace(output)
	line := trimmed[strings.LastIndexByte(trimmed, '\n')+1:]
	return strings.TrimRight(line, "\r")
}

// decodeStructured never falls back to the legacy dialect: a leading brace
// commits the output to the JSON contract.
func (d *resultDecoder) decodeStructured(line, raw string) (*entity.DetectionResult, error) {
	var result entity.DetectionResult
	if err := d.json.UnmarshalFromString(line, &result); err != nil {
		return nil, &detection.ResultParseError{Raw: raw, Err: err}
	}

	if err := d.validator.Struct(result); err != nil {
		return nil, &detection.ResultParseError{Raw: raw, Err: err}
	}

	if result.Detections == nil {
		result.Detections = []entity.Detection{}
	}

	return &result, nil
}

func decodeLegacy(line string) *entity.DetectionResult {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "true") || strings.Contains(lower, "trash detected") {
		bbox := make([]float64, len(legacyPlaceholderBBox))
		copy(bbox, legacyPlaceholderBBox)

		return &entity.DetectionResult{
			TrashDetected: true,
			Confidence:    legacyPositiveConfidence,
			Detections: []entity.Detection{{
				Class:      "trash",
				Confidence: legacyPositiveConfidence,
				BBox:       bbox,
			}},
		}
	}

	return &entity.DetectionResult{
		TrashDetected: false,
		Confidence:    legacyNegativeConfidence,
		Detections:    []entity.Detection{},
	}
}
