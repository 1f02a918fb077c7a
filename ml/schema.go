package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

func LoadColumns(path string) ([]string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read columns: %v", ErrArtifactLoad, err)
	}
	var columns []string
	if err := json.Unmarshal(payload, &columns); err != nil {
		return nil, fmt.Errorf("%w: decode columns: %v", ErrArtifactLoad, err)
	}
	if err := ValidateColumns(columns); err != nil {
		return nil, err
	}
	return columns, nil
}

func ValidateColumns(columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: column list is empty", ErrSchemaMismatch)
	}
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		if col == "" {
			return fmt.Errorf("%w: column %d has no name", ErrSchemaMismatch, i)
		}
		if seen[col] {
			return fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, col)
		}
		seen[col] = true
	}
	return nil
}

// LabelEncoder maps categorical values to their index in the fitted class
// list, per column.
type LabelEncoder struct {
	classes map[string][]string
	index   map[string]map[string]int
}

func NewLabelEncoder(classes map[string][]string) (*LabelEncoder, error) {
	enc := &LabelEncoder{
		classes: make(map[string][]string, len(classes)),
		index:   make(map[string]map[string]int, len(classes)),
	}
	for col, values := range classes {
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: encoder column %q has no classes", ErrSchemaMismatch, col)
		}
		idx := make(map[string]int, len(values))
		for i, v := range values {
			if _, dup := idx[v]; dup {
				return nil, fmt.Errorf("%w: encoder column %q repeats class %q", ErrSchemaMismatch, col, v)
			}
			idx[v] = i
		}
		enc.classes[col] = append([]string(nil), values...)
		enc.index[col] = idx
	}
	return enc, nil
}

// FitLabelEncoder orders classes the way a fitted scikit-learn LabelEncoder
// does: sorted lexicographically.
func FitLabelEncoder(column string, values []string) (*LabelEncoder, error) {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return NewLabelEncoder(map[string][]string{column: sorted})
}

// LoadEncoder returns (nil, nil) when the file does not exist.
func LoadEncoder(path string) (*LabelEncoder, error) {
	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read encoder: %v", ErrArtifactLoad, err)
	}
	var classes map[string][]string
	if err := json.Unmarshal(payload, &classes); err != nil {
		return nil, fmt.Errorf("%w: decode encoder: %v", ErrArtifactLoad, err)
	}
	return NewLabelEncoder(classes)
}

func (e *LabelEncoder) Encode(column, value string) (float64, bool) {
	idx, ok := e.index[column][value]
	if !ok {
		return 0, false
	}
	return float64(idx), true
}

func (e *LabelEncoder) Classes(column string) []string {
	return append([]string(nil), e.classes[column]...)
}

func (e *LabelEncoder) Has(column string) bool {
	_, ok := e.classes[column]
	return ok
}
