package ml

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestLoadModel(t *testing.T) {
	tests := []struct {
		file      string
		modelType string
		wantType  string
	}{
		{"model.json", "", RandomForestType},
		{"model.json", RandomForestType, RandomForestType},
		{"tree.json", "", DecisionTreeType},
		{"logistic.json", LogisticRegressionType, LogisticRegressionType},
	}
	for _, tt := range tests {
		t.Run(tt.file+"/"+tt.modelType, func(t *testing.T) {
			model, err := LoadModel(tt.modelType, filepath.Join("testdata", tt.file))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if model.Type() != tt.wantType {
				t.Fatalf("expected %s, got %s", tt.wantType, model.Type())
			}
			if model.NumFeatures() != 6 {
				t.Fatalf("expected 6 features, got %d", model.NumFeatures())
			}
			proba, err := model.PredictProba(make([]float64, 6))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			sum := 0.0
			for _, p := range proba {
				sum += p
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("probabilities should sum to 1, got %f", sum)
			}
		})
	}
}

func TestLoadModelTypeConflict(t *testing.T) {
	_, err := LoadModel(DecisionTreeType, filepath.Join("testdata", "model.json"))
	if !errors.Is(err, ErrArtifactLoad) {
		t.Fatalf("expected artifact load error, got %v", err)
	}
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel("", filepath.Join("testdata", "missing.json"))
	if !errors.Is(err, ErrArtifactLoad) {
		t.Fatalf("expected artifact load error, got %v", err)
	}
}

func TestDecodeModelErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `{`, ErrArtifactLoad},
		{"no type", `{"classes": [0, 1]}`, ErrArtifactLoad},
		{"unknown type", `{"type": "svm"}`, ErrArtifactLoad},
		{"logistic width", `{"type": "logistic_regression", "classes": [0, 1], "n_features": 3, "coef": [1, 2]}`, ErrSchemaMismatch},
		{"forest without trees", `{"type": "random_forest", "classes": [0, 1], "n_features": 2, "trees": []}`, ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := DecodeModel("", []byte(tt.payload))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if model != nil {
				t.Fatalf("expected nil model on error, got %T", model)
			}
		})
	}
}
