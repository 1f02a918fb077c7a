package ml

import (
	"fmt"
	"math"
)

const LogisticRegressionType = "logistic_regression"

// LogisticRegression is a binary linear classifier; PredictProba returns
// [1-p, p] where p is the probability of the second class.
type LogisticRegression struct {
	classes   []int
	coef      []float64
	intercept float64
}

type logisticArtifact struct {
	Type      string    `json:"type"`
	Classes   []int     `json:"classes"`
	NFeatures int       `json:"n_features"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func NewLogisticRegression(classes []int, coef []float64, intercept float64) (*LogisticRegression, error) {
	if err := validateClasses(classes); err != nil {
		return nil, err
	}
	if len(classes) != 2 {
		return nil, fmt.Errorf("%w: logistic regression is binary, got %d classes", ErrSchemaMismatch, len(classes))
	}
	if len(coef) == 0 {
		return nil, fmt.Errorf("%w: logistic regression has no coefficients", ErrSchemaMismatch)
	}
	return &LogisticRegression{
		classes:   append([]int(nil), classes...),
		coef:      append([]float64(nil), coef...),
		intercept: intercept,
	}, nil
}

func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(features) != len(lr.coef) {
		return nil, fmt.Errorf("%w: logistic regression expects %d features, got %d", ErrSchemaMismatch, len(lr.coef), len(features))
	}
	z := lr.intercept
	for i, x := range features {
		z += lr.coef[i] * x
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes...)
}

func (lr *LogisticRegression) NumFeatures() int {
	return len(lr.coef)
}

func (lr *LogisticRegression) Type() string {
	return LogisticRegressionType
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
