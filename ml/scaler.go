package ml

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	StandardScalerKind = "standard"
	MinMaxScalerKind   = "minmax"
)

type StandardScaler struct {
	mean  []float64
	scale []float64
	names []string
}

type MinMaxScaler struct {
	min   []float64
	max   []float64
	names []string
}

type scalerArtifact struct {
	Kind         string    `json:"kind"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
	Min          []float64 `json:"min"`
	Max          []float64 `json:"max"`
	FeatureNames []string  `json:"feature_names"`
}

func NewStandardScaler(mean, scale []float64, names []string) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("%w: standard scaler has %d means and %d scales", ErrSchemaMismatch, len(mean), len(scale))
	}
	if len(names) > 0 && len(names) != len(mean) {
		return nil, fmt.Errorf("%w: standard scaler has %d feature names for width %d", ErrSchemaMismatch, len(names), len(mean))
	}
	return &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: append([]float64(nil), scale...),
		names: append([]string(nil), names...),
	}, nil
}

func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.mean) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrSchemaMismatch, len(s.mean), len(features))
	}
	out := make([]float64, len(features))
	for i, x := range features {
		scale := s.scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (x - s.mean[i]) / scale
	}
	return out, nil
}

func (s *StandardScaler) Width() int {
	return len(s.mean)
}

func (s *StandardScaler) FeatureNames() []string {
	return append([]string(nil), s.names...)
}

func NewMinMaxScaler(mins, maxs []float64, names []string) (*MinMaxScaler, error) {
	if len(mins) == 0 || len(mins) != len(maxs) {
		return nil, fmt.Errorf("%w: min-max scaler has %d mins and %d maxs", ErrSchemaMismatch, len(mins), len(maxs))
	}
	if len(names) > 0 && len(names) != len(mins) {
		return nil, fmt.Errorf("%w: min-max scaler has %d feature names for width %d", ErrSchemaMismatch, len(names), len(mins))
	}
	return &MinMaxScaler{
		min:   append([]float64(nil), mins...),
		max:   append([]float64(nil), maxs...),
		names: append([]string(nil), names...),
	}, nil
}

func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if len(features) != len(s.min) {
		return nil, fmt.Errorf("%w: scaler expects %d features, got %d", ErrSchemaMismatch, len(s.min), len(features))
	}
	out := make([]float64, len(features))
	for i, x := range features {
		span := s.max[i] - s.min[i]
		if span == 0 {
			span = 1
		}
		out[i] = (x - s.min[i]) / span
	}
	return out, nil
}

func (s *MinMaxScaler) Width() int {
	return len(s.min)
}

func (s *MinMaxScaler) FeatureNames() []string {
	return append([]string(nil), s.names...)
}

func LoadScaler(path string) (Scaler, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read scaler: %v", ErrArtifactLoad, err)
	}
	return DecodeScaler(payload)
}

func DecodeScaler(payload []byte) (Scaler, error) {
	var artifact scalerArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("%w: decode scaler: %v", ErrArtifactLoad, err)
	}
	switch artifact.Kind {
	case StandardScalerKind, "":
		s, err := NewStandardScaler(artifact.Mean, artifact.Scale, artifact.FeatureNames)
		if err != nil {
			return nil, err
		}
		return s, nil
	case MinMaxScalerKind:
		s, err := NewMinMaxScaler(artifact.Min, artifact.Max, artifact.FeatureNames)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scaler kind %q", ErrArtifactLoad, artifact.Kind)
	}
}
