package inference

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"xente/db"
	"xente/ml"
	"xente/monitoring"
)

type Cache interface {
	Get(ctx context.Context, key string) (float64, bool)
	Set(ctx context.Context, key string, value float64) error
	Purge(ctx context.Context) error
}

type Store interface {
	SavePrediction(ctx context.Context, p db.Prediction) (int64, error)
}

type Broadcaster interface {
	Broadcast(msgType monitoring.MessageType, data any) error
}

type Recorder interface {
	ObservePrediction(elapsed time.Duration, cached bool)
	ObserveError(reason string)
	ObserveReload(err error)
}

type ServiceConfig struct {
	Cache   Cache
	Store   Store
	Feed    Broadcaster
	Metrics Recorder
	Logger  *zap.Logger
	// HandlerOptions apply to every handler built by Load and Reload.
	HandlerOptions []Option
}

// Service serves predictions from the current Handler. The handler can be
// replaced at runtime; requests in flight keep the one they started with.
type Service struct {
	handler    atomic.Pointer[Handler]
	generation atomic.Uint64
	cache      Cache
	store      Store
	feed       Broadcaster
	metrics    Recorder
	logger     *zap.Logger
	opts       []Option
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := append([]Option{WithLogger(logger)}, cfg.HandlerOptions...)
	return &Service{
		cache:   cfg.Cache,
		store:   cfg.Store,
		feed:    cfg.Feed,
		metrics: cfg.Metrics,
		logger:  logger,
		opts:    opts,
	}
}

// Load builds a handler for arts and makes it current. On error the previous
// handler stays in place.
func (s *Service) Load(ctx context.Context, arts *ml.Artifacts) error {
	h, err := NewHandler(arts, s.opts...)
	if err != nil {
		s.observeReload(err)
		return err
	}
	s.observeReload(nil)
	// store before bumping so a reader that sees the new generation
	// also sees the new handler
	s.handler.Store(h)
	s.generation.Add(1)
	if s.cache != nil {
		if err := s.cache.Purge(ctx); err != nil {
			s.logger.Warn("cache purge failed", zap.Error(err))
		}
	}
	s.logger.Info("model loaded",
		zap.String("model_type", h.ModelType()),
		zap.Int("columns", len(h.columns)))
	if s.feed != nil {
		if err := s.feed.Broadcast(monitoring.ModelReloaded, map[string]any{
			"model_type": h.ModelType(),
			"columns":    len(h.columns),
		}); err != nil {
			s.logger.Warn("broadcasting reload failed", zap.Error(err))
		}
	}
	return nil
}

// Reload reads the artifacts from paths and loads them.
func (s *Service) Reload(ctx context.Context, paths ml.ArtifactPaths) error {
	arts, err := ml.LoadArtifacts(paths)
	if err != nil {
		s.observeReload(err)
		return err
	}
	return s.Load(ctx, arts)
}

func (s *Service) Ready() bool {
	return s.handler.Load() != nil
}

// Handler returns the current handler, or nil before the first Load.
func (s *Service) Handler() *Handler {
	return s.handler.Load()
}

func (s *Service) Predict(ctx context.Context, app Application) (Result, error) {
	res, err := s.predict(ctx, app)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveError(errorReason(err))
		}
		return Result{}, err
	}
	return res, nil
}

// afterGenerationRead runs between the generation read and the handler read.
var afterGenerationRead = func() {}

func (s *Service) predict(ctx context.Context, app Application) (Result, error) {
	// generation first: a handler stored after this read makes the fill below
	// a no-op instead of caching an older model's answer
	gen := s.generation.Load()
	afterGenerationRead()
	h := s.handler.Load()
	if h == nil {
		return Result{}, ErrNotReady
	}
	if err := app.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	key := app.Key()
	if s.cache != nil {
		if p, ok := s.cache.Get(ctx, key); ok {
			res := Result{Probability: p, ModelType: h.ModelType(), Cached: true}
			s.observe(time.Since(start), true)
			s.record(ctx, app, res)
			return res, nil
		}
	}

	res, err := h.Predict(ctx, app)
	if err != nil {
		if !errors.Is(err, ErrInvalidInput) {
			s.logger.Error("prediction failed", zap.String("key", key), zap.Error(err))
		}
		return Result{}, err
	}
	elapsed := time.Since(start)
	s.observe(elapsed, false)
	s.logger.Debug("prediction served",
		zap.String("key", key),
		zap.Float64("probability", res.Probability),
		zap.Duration("elapsed", elapsed))

	// skip the fill if a reload happened while predicting
	if s.cache != nil && s.generation.Load() == gen {
		if err := s.cache.Set(ctx, key, res.Probability); err != nil {
			s.logger.Warn("cache fill failed", zap.Error(err))
		}
	}
	s.record(ctx, app, res)
	return res, nil
}

func (s *Service) record(ctx context.Context, app Application, res Result) {
	p := db.Prediction{
		ProductCategory: app.ProductCategory,
		AmountLoan:      app.AmountLoan,
		InvestorID:      app.InvestorID,
		TotalAmount:     app.TotalAmount,
		Probability:     res.Probability,
		ModelType:       res.ModelType,
		CreatedAt:       time.Now().UTC(),
	}
	if s.store != nil {
		id, err := s.store.SavePrediction(ctx, p)
		if err != nil {
			s.logger.Warn("saving prediction failed", zap.Error(err))
		}
		p.ID = id
	}
	if s.feed != nil {
		if err := s.feed.Broadcast(monitoring.PredictionMade, p); err != nil {
			s.logger.Warn("broadcasting prediction failed", zap.Error(err))
		}
	}
}

func (s *Service) observe(elapsed time.Duration, cached bool) {
	if s.metrics != nil {
		s.metrics.ObservePrediction(elapsed, cached)
	}
}

func (s *Service) observeReload(err error) {
	if s.metrics != nil {
		s.metrics.ObserveReload(err)
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return monitoring.ReasonInvalidInput
	case errors.Is(err, ErrNotReady):
		return monitoring.ReasonNotReady
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return monitoring.ReasonCanceled
	default:
		return monitoring.ReasonInternal
	}
}
