package ml

import (
	"context"
	"errors"
)

var (
	ErrNotTrained   = errors.New("model not trained")
	ErrFeatureCount = errors.New("feature count mismatch")
	ErrCorruptModel = errors.New("corrupt model artifact")
)

// Predictor returns the predicted label and its probability.
type Predictor interface {
	Predict(features []float64) (int, float64, error)
}

// Classifier is the read-only half of a fitted model. Implementations must be safe for
// concurrent use once fitted.
type Classifier interface {
	Predictor
	PredictProba(features []float64) ([]float64, error)
}

// Estimator is anything that can be fitted and then asked for a label.
type Estimator interface {
	Predictor
	Fit(ctx context.Context, features [][]float64, labels []int) error
}

// MLModel is a classifier that can be trained and persisted.
type MLModel interface {
	Classifier
	Fit(ctx context.Context, features [][]float64, labels []int) error
	Save(path string) error
	Load(path string) error
}
