package entity

// Detection is one localized prediction. BBox is [x, y, width, height] as
// emitted by the model.
type Detection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence" validate:"gte=0,lte=1"`
	BBox       []float64 `json:"bbox" validate:"len=4"`
}

type DetectionResult struct {
	TrashDetected bool        `json:"trashDetected"`
	Confidence    float64     `json:"confidence" validate:"gte=0,lte=1"`
	Detections    []Detection `json:"detections" validate:"dive"`
	ProcessTime   float64     `json:"processTime" validate:"gte=0"`
}

type ReadinessReport struct {
	InterpreterPresent bool `json:"interpreter_present"`
	ScriptPresent      bool `json:"script_present"`
	WeightsPresent     bool `json:"weights_present"`
	Ready              bool `json:"ready"`
}

type ModelPerformance struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MAP50     float64 `json:"map_50"`
	MAP50To95 float64 `json:"map_50_95"`
}

type ModelMetadata struct {
	Name             string           `json:"name"`
	Version          string           `json:"version"`
	Architecture     string           `json:"architecture"`
	Parameters       string           `json:"parameters"`
	Size             string           `json:"size"`
	InputResolution  string           `json:"input_resolution"`
	Dataset          string           `json:"dataset"`
	TrainingImages   int              `json:"training_images"`
	ValidationImages int              `json:"validation_images"`
	Classes          []string         `json:"classes"`
	Performance      ModelPerformance `json:"performance"`
}

// TrashModel describes the deployed weights. It is not read from the model;
// every call returns a fresh copy.
func TrashModel() ModelMetadata {
	return ModelMetadata{
		Name:             "YOLOv8 Trash Detection",
		Version:          "1.0.0",
		Architecture:     "YOLOv8n",
		Parameters:       "3.0M",
		Size:             "6.2MB",
		InputResolution:  "640x640",
		Dataset:          "TACO",
		TrainingImages:   1200,
		ValidationImages: 300,
		Classes:          []string{"trash"},
		Performance: ModelPerformance{
			Precision: 0.489,
			Recall:    0.345,
			MAP50:     0.329,
			MAP50To95: 0.201,
		},
	}
}
