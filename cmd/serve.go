package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"xente/config"
	"xente/db"
	qhttp "xente/http"
	"xente/inference"
	"xente/logging"
	"xente/ml"
	"xente/monitoring"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the predictor UI and JSON API",
	Long: `Loads the model artifacts and serves the Home, Predictor and About pages
together with the JSON API and the websocket prediction feed.

With ml.watch enabled the artifacts are reloaded when any of the files change,
and the server starts even if the first load fails.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(logOptions(cfg))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcCfg := inference.ServiceConfig{
		Logger:         logger,
		HandlerOptions: handlerOptions(cfg, logger),
	}

	predictionCache, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	if predictionCache != nil {
		svcCfg.Cache = predictionCache
	}

	deps := qhttp.Deps{Logger: logger}
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		logger.Info("prediction history enabled", zap.String("path", cfg.Database.Path))
		svcCfg.Store = store
		deps.History = store
	}

	feed := monitoring.NewFeed(cfg.Http.AllowedOrigins, logger)
	svcCfg.Feed = feed
	deps.Feed = feed

	metrics := monitoring.NewMetrics()
	svcCfg.Metrics = metrics
	deps.Metrics = metrics

	svc := inference.NewService(svcCfg)
	deps.Service = svc

	paths := artifactPaths(cfg)
	if err := svc.Reload(ctx, paths); err != nil {
		if !cfg.ML.Watch {
			return fmt.Errorf("load artifacts: %w", err)
		}
		logger.Error("initial artifact load failed, waiting for changes", zap.Error(err))
	}

	server := qhttp.NewServer(serverConfig(cfg), deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error { return feed.Run(gctx) })
	if cfg.ML.Watch {
		watcher := ml.NewWatcher(paths, cfg.ML.Debounce, func() {
			if err := svc.Reload(gctx, paths); err != nil {
				logger.Error("artifact reload failed", zap.Error(err))
			}
		}, logger)
		g.Go(func() error { return watcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
