// Package inference holds the read-only model handle used to answer prediction requests.
package inference

import (
	"errors"
	"fmt"
	"os"
	"time"

	"medrisk/dataset"
	"medrisk/ml"
)

// ErrModelNotFound is returned by Load when the artifact file does not exist.
var ErrModelNotFound = errors.New("model not found")

// UnknownLabel is reported for a class outside the trained label set.
const UnknownLabel = "Unknown"

// LabelName maps a class to its display name. Classes outside the trained label set map to
// "Unknown" rather than failing the request.
func LabelName(class int) string {
	if name, ok := dataset.ClassNames[class]; ok {
		return name
	}
	return UnknownLabel
}

// PredictionResult is the outcome of one prediction.
type PredictionResult struct {
	Label      string        `json:"label"`
	Class      int           `json:"class"`
	Confidence float64       `json:"confidence"`
	Latency    time.Duration `json:"latency"`
}

// Service wraps a fitted classifier. The classifier is never replaced after construction,
// so a Service is safe for concurrent use.
type Service struct {
	model ml.Classifier
}

// NewService wraps an already fitted model.
func NewService(model ml.Classifier) *Service {
	return &Service{model: model}
}

// Load reads the artifact at path. An empty modelType means random forest.
func Load(path, modelType string) (*Service, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, err
	}
	model, err := ml.LoadModel(modelType, path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return NewService(model), nil
}

// Predict classifies rec. Confidence is the highest class probability.
func (s *Service) Predict(rec FeatureRecord) (PredictionResult, error) {
	start := time.Now()
	class, confidence, err := s.model.Predict(rec.Vector())
	if err != nil {
		return PredictionResult{}, err
	}
	return PredictionResult{
		Label:      LabelName(class),
		Class:      class,
		Confidence: confidence,
		Latency:    time.Since(start),
	}, nil
}

// Trees reports the forest size, or 1 for a single tree.
func (s *Service) Trees() int {
	if s == nil {
		return 0
	}
	switch m := s.model.(type) {
	case *ml.RandomForest:
		return len(m.Trees)
	case *ml.DecisionTree:
		return 1
	default:
		return 0
	}
}
