// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"xente/db"
	"xente/inference"
	"xente/monitoring"
)

// Server HTTP服务器
type Server struct {
	server  *http.Server
	config  ServerConfig
	limiter *RateLimiter
	logger  *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	AllowedOrigins []string
	MaxBodyBytes   int64
	// RateLimit 每个窗口每个IP允许的预测请求数，0表示不限流
	RateLimit  int
	RateWindow time.Duration
	Title      string
	Locale     string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		Timeout:        30 * time.Second,
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   64 << 10,
		RateLimit:      60,
		RateWindow:     time.Minute,
		Title:          "Loan Default Predictor - Xente",
		Locale:         "en",
	}
}

// HistoryStore 预测历史查询接口
type HistoryStore interface {
	RecentPredictions(ctx context.Context, limit int) ([]db.Prediction, error)
}

// Deps 服务器依赖
type Deps struct {
	Service *inference.Service
	// History 为nil时历史接口返回404
	History HistoryStore
	// Feed 为nil时WebSocket接口返回404
	Feed *monitoring.Feed
	// Metrics 为nil时指标接口返回404
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewServer 创建HTTP服务器
func NewServer(config ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	var limiter *RateLimiter
	if config.RateLimit > 0 && config.RateWindow > 0 {
		limiter = NewRateLimiter(config.RateLimit, config.RateWindow)
	}

	mux := http.NewServeMux()

	api := &apiHandlers{
		service: deps.Service,
		history: deps.History,
		feed:    deps.Feed,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
	api.register(mux, limiter)

	ui := newUIHandlers(deps.Service, deps.History, config.Title, config.Locale, deps.Logger)
	ui.register(mux, limiter)

	// 创建中间件链
	chain := Chain(
		RecoveryMiddleware(deps.Logger),            // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(deps.Logger),              // 2. 日志中间件
		SecurityHeadersMiddleware,                  // 3. 安全头中间件
		CORSMiddleware(config.AllowedOrigins),      // 4. CORS中间件
		RequestSizeMiddleware(config.MaxBodyBytes), // 5. 请求大小限制
		TimeoutMiddleware(config.Timeout),          // 6. 请求上下文超时
	)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           chain(mux),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.Timeout,
			WriteTimeout:      config.Timeout,
			IdleTimeout:       120 * time.Second,
		},
		config:  config,
		limiter: limiter,
		logger:  deps.Logger,
	}
}

// Handler 返回完整的处理器链
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start 启动服务器，阻塞直到服务器关闭
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("addr", s.server.Addr),
		zap.String("websocket", "/api/ws/predictions"))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Stop 在5秒内停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
