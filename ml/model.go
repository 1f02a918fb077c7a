package ml

import "errors"

var (
	ErrArtifactLoad   = errors.New("artifact load failed")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Classifier estimates per-class probabilities for a single feature row.
type Classifier interface {
	PredictProba(features []float64) ([]float64, error)
	Classes() []int
	NumFeatures() int
	Type() string
}

// Scaler applies a pre-fitted linear transform to a feature row.
type Scaler interface {
	Transform(features []float64) ([]float64, error)
	Width() int
	FeatureNames() []string
}
