package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"xente/cache"
	"xente/config"
	qhttp "xente/http"
	"xente/inference"
	"xente/logging"
	"xente/ml"
)

func logOptions(cfg *config.Config) logging.Options {
	return logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
}

func artifactPaths(cfg *config.Config) ml.ArtifactPaths {
	return ml.ArtifactPaths{
		Dir:       cfg.ML.ArtifactDir,
		ModelType: cfg.ML.ModelType,
		Model:     cfg.ML.ModelPath,
		Scaler:    cfg.ML.ScalerPath,
		Columns:   cfg.ML.ColumnsPath,
		Encoder:   cfg.ML.EncoderPath,
	}
}

func handlerOptions(cfg *config.Config, logger *zap.Logger) []inference.Option {
	return []inference.Option{
		inference.WithPositiveClass(cfg.ML.PositiveClass),
		inference.WithLogger(logger),
	}
}

func serverConfig(cfg *config.Config) qhttp.ServerConfig {
	return qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
		RateLimit:      cfg.Http.RateLimit.Requests,
		RateWindow:     cfg.Http.RateLimit.Window,
		Title:          cfg.UI.Title,
		Locale:         cfg.UI.Locale,
	}
}

// newCache returns nil when caching is disabled. The close func is never nil.
func newCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (inference.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case "lru":
		lru, err := cache.NewLRU(cfg.Cache.Size)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("prediction cache enabled", zap.String("backend", "lru"), zap.Int("size", cfg.Cache.Size))
		return lru, func() {}, nil
	case "redis":
		r := cache.NewRedis(cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
			TTL:      cfg.Cache.TTL,
		})
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, func() {}, fmt.Errorf("connect redis %s: %w", cfg.Cache.Redis.Addr, err)
		}
		logger.Info("prediction cache enabled", zap.String("backend", "redis"), zap.String("addr", cfg.Cache.Redis.Addr))
		return r, func() { r.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
