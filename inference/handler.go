package inference

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"xente/ml"
)

const DefaultPositiveClass = 1

// Result is the outcome of one inference.
type Result struct {
	// Probability is the default likelihood in percent, within [0, 100].
	Probability float64 `json:"probability"`
	ModelType   string  `json:"model_type"`
	Cached      bool    `json:"cached"`
}

func (r Result) Formatted() string {
	return fmt.Sprintf("%.2f%%", r.Probability)
}

type Option func(*handlerOptions)

type handlerOptions struct {
	positiveClass int
	logger        *zap.Logger
}

// WithPositiveClass selects the class label whose probability is reported.
func WithPositiveClass(label int) Option {
	return func(o *handlerOptions) { o.positiveClass = label }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *handlerOptions) { o.logger = logger }
}

// Handler turns one Application into a default probability using a fixed set
// of artifacts. It holds no mutable state and is safe for concurrent use.
type Handler struct {
	model    ml.Classifier
	scaler   ml.Scaler
	columns  []string
	encoder  *ml.LabelEncoder
	positive int
	logger   *zap.Logger
}

// NewHandler checks that the artifacts agree with each other and with the
// form before any request is served.
func NewHandler(arts *ml.Artifacts, opts ...Option) (*Handler, error) {
	o := handlerOptions{positiveClass: DefaultPositiveClass}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if arts == nil || arts.Model == nil || arts.Scaler == nil {
		return nil, fmt.Errorf("%w: model and scaler are required", ml.ErrArtifactLoad)
	}
	if err := ml.ValidateColumns(arts.Columns); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(arts.Columns))
	for i, col := range arts.Columns {
		index[col] = i
	}
	for _, col := range FormColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: training schema has no %q column", ml.ErrSchemaMismatch, col)
		}
	}

	width := len(arts.Columns)
	if n := arts.Model.NumFeatures(); n > 0 && n != width {
		return nil, fmt.Errorf("%w: model expects %d features, schema has %d columns", ml.ErrSchemaMismatch, n, width)
	}
	if arts.Scaler.Width() != width {
		return nil, fmt.Errorf("%w: scaler expects %d features, schema has %d columns", ml.ErrSchemaMismatch, arts.Scaler.Width(), width)
	}
	if names := arts.Scaler.FeatureNames(); len(names) > 0 {
		for i, name := range names {
			if name != arts.Columns[i] {
				return nil, fmt.Errorf("%w: scaler column %d is %q, schema has %q", ml.ErrSchemaMismatch, i, name, arts.Columns[i])
			}
		}
	}

	encoder := arts.Encoder
	if encoder == nil {
		var err error
		encoder, err = ml.FitLabelEncoder(ColumnProductCategory, ProductCategories)
		if err != nil {
			return nil, err
		}
	}
	for _, category := range ProductCategories {
		if _, ok := encoder.Encode(ColumnProductCategory, category); !ok {
			return nil, fmt.Errorf("%w: encoder has no class for category %q", ml.ErrSchemaMismatch, category)
		}
	}

	positive := -1
	for i, label := range arts.Model.Classes() {
		if label == o.positiveClass {
			positive = i
			break
		}
	}
	if positive < 0 {
		return nil, fmt.Errorf("%w: model has no class %d", ml.ErrSchemaMismatch, o.positiveClass)
	}

	return &Handler{
		model:    arts.Model,
		scaler:   arts.Scaler,
		columns:  append([]string(nil), arts.Columns...),
		encoder:  encoder,
		positive: positive,
		logger:   o.logger,
	}, nil
}

// Predict validates app, builds its feature row in schema order, scales it
// and returns the probability of the positive class in percent.
func (h *Handler) Predict(ctx context.Context, app Application) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := app.Validate(); err != nil {
		return Result{}, err
	}

	row, err := h.Row(app)
	if err != nil {
		return Result{}, err
	}
	scaled, err := h.scaler.Transform(row)
	if err != nil {
		return Result{}, err
	}
	proba, err := h.model.PredictProba(scaled)
	if err != nil {
		return Result{}, err
	}
	if len(proba) <= h.positive {
		return Result{}, fmt.Errorf("%w: model returned %d probabilities", ml.ErrSchemaMismatch, len(proba))
	}

	p := proba[h.positive] * 100
	if math.IsNaN(p) {
		return Result{}, fmt.Errorf("model returned NaN for class %d", h.model.Classes()[h.positive])
	}
	return Result{
		Probability: math.Max(0, math.Min(100, p)),
		ModelType:   h.model.Type(),
	}, nil
}

// Record assembles the labeled feature record for app.
func (h *Handler) Record(app Application) (*ml.Record, error) {
	category, ok := h.encoder.Encode(ColumnProductCategory, app.ProductCategory)
	if !ok {
		return nil, fmt.Errorf("%w: unknown product category %q", ErrInvalidInput, app.ProductCategory)
	}
	return ml.NewRecord(
		ml.Field{Name: ColumnProductCategory, Value: category},
		ml.Field{Name: ColumnAmountLoan, Value: app.AmountLoan},
		ml.Field{Name: ColumnInvestorID, Value: float64(app.InvestorID)},
		ml.Field{Name: ColumnTotalAmount, Value: app.TotalAmount},
	), nil
}

// Row is the unscaled feature row in training column order, zero-filled for
// columns the form does not collect.
func (h *Handler) Row(app Application) ([]float64, error) {
	record, err := h.Record(app)
	if err != nil {
		return nil, err
	}
	row, dropped := record.Expand(h.columns)
	if len(dropped) > 0 {
		h.logger.Warn("fields outside training schema dropped", zap.Strings("fields", dropped))
	}
	return row, nil
}

func (h *Handler) Columns() []string {
	return append([]string(nil), h.columns...)
}

func (h *Handler) ModelType() string {
	return h.model.Type()
}
