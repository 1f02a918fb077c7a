package ml

import (
	"path/filepath"
)

const (
	DefaultModelFile   = "model.json"
	DefaultScalerFile  = "scaler.json"
	DefaultColumnsFile = "columns.json"
	DefaultEncoderFile = "encoder.json"
)

// ArtifactPaths locates the serialized artifacts. Relative file names are
// resolved against Dir.
type ArtifactPaths struct {
	Dir       string
	ModelType string
	Model     string
	Scaler    string
	Columns   string
	Encoder   string
}

// Artifacts is the read-only set of objects produced at training time.
type Artifacts struct {
	Model   Classifier
	Scaler  Scaler
	Columns []string
	// Encoder is nil when no encoder artifact was shipped.
	Encoder *LabelEncoder
}

func (p ArtifactPaths) withDefaults() ArtifactPaths {
	if p.Model == "" {
		p.Model = DefaultModelFile
	}
	if p.Scaler == "" {
		p.Scaler = DefaultScalerFile
	}
	if p.Columns == "" {
		p.Columns = DefaultColumnsFile
	}
	if p.Encoder == "" {
		p.Encoder = DefaultEncoderFile
	}
	return p
}

func (p ArtifactPaths) resolve(name string) string {
	if filepath.IsAbs(name) || p.Dir == "" {
		return name
	}
	return filepath.Join(p.Dir, name)
}

// Files returns the absolute-or-Dir-relative paths of every artifact.
func (p ArtifactPaths) Files() []string {
	p = p.withDefaults()
	return []string{
		p.resolve(p.Model),
		p.resolve(p.Scaler),
		p.resolve(p.Columns),
		p.resolve(p.Encoder),
	}
}

func LoadArtifacts(paths ArtifactPaths) (*Artifacts, error) {
	paths = paths.withDefaults()

	model, err := LoadModel(paths.ModelType, paths.resolve(paths.Model))
	if err != nil {
		return nil, err
	}
	scaler, err := LoadScaler(paths.resolve(paths.Scaler))
	if err != nil {
		return nil, err
	}
	columns, err := LoadColumns(paths.resolve(paths.Columns))
	if err != nil {
		return nil, err
	}
	encoder, err := LoadEncoder(paths.resolve(paths.Encoder))
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		Model:   model,
		Scaler:  scaler,
		Columns: columns,
		Encoder: encoder,
	}, nil
}
