package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"xente/inference"
	"xente/monitoring"
)

const maxHistoryLimit = 500

type apiHandlers struct {
	service *inference.Service
	history HistoryStore
	feed    *monitoring.Feed
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func (a *apiHandlers) register(mux *http.ServeMux, limiter *RateLimiter) {
	mux.HandleFunc("GET /api/health", a.handleHealth)
	mux.HandleFunc("GET /api/schema", a.handleSchema)
	mux.Handle("POST /api/predict", RateLimitMiddleware(limiter, http.HandlerFunc(a.handlePredict)))
	mux.HandleFunc("GET /api/predictions", a.handlePredictions)
	mux.HandleFunc("GET /api/ws/predictions", a.handleWebSocket)
	mux.HandleFunc("GET /api/stats", a.handleStats)
	mux.HandleFunc("GET /metrics", a.handleMetrics)
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelType   string `json:"model_type,omitempty"`
	Listeners   int    `json:"listeners"`
}

func (a *apiHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h := a.service.Handler(); h != nil {
		resp.ModelLoaded = true
		resp.ModelType = h.ModelType()
	}
	if a.feed != nil {
		resp.Listeners = a.feed.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

type schemaResponse struct {
	Columns           []string `json:"columns"`
	FormColumns       []string `json:"form_columns"`
	ProductCategories []string `json:"product_categories"`
	InvestorIDs       []int    `json:"investor_ids"`
	MinAmount         float64  `json:"min_amount"`
	MaxAmount         float64  `json:"max_amount"`
	ModelType         string   `json:"model_type"`
}

func (a *apiHandlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	h := a.service.Handler()
	if h == nil {
		writeError(w, http.StatusServiceUnavailable, inference.ErrNotReady.Error())
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Columns:           h.Columns(),
		FormColumns:       inference.FormColumns,
		ProductCategories: inference.ProductCategories,
		InvestorIDs:       inference.InvestorIDs,
		MinAmount:         inference.MinAmount,
		MaxAmount:         inference.MaxAmount,
		ModelType:         h.ModelType(),
	})
}

type predictResponse struct {
	Probability float64 `json:"probability"`
	Formatted   string  `json:"formatted"`
	ModelType   string  `json:"model_type"`
	Cached      bool    `json:"cached"`
}

func (a *apiHandlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var app inference.Application
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&app); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := a.service.Predict(r.Context(), app)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			a.logger.Error("predict failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
			writeError(w, status, "prediction failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		Probability: res.Probability,
		Formatted:   res.Formatted(),
		ModelType:   res.ModelType,
		Cached:      res.Cached,
	})
}

func (a *apiHandlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusNotFound, "prediction history is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	rows, err := a.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		a.logger.Error("listing predictions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing predictions failed")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *apiHandlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if a.feed == nil {
		http.NotFound(w, r)
		return
	}
	a.feed.HandleWebSocket(w, r)
}

func (a *apiHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	if a.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics are disabled")
		return
	}
	writeJSON(w, http.StatusOK, a.metrics.Snapshot())
}

// handleMetrics 以Prometheus文本格式导出指标
func (a *apiHandlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if a.metrics == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := a.metrics.WritePrometheus(w); err != nil {
		a.logger.Warn("writing metrics failed", zap.Error(err))
	}
}

// statusFor 将推理错误映射为HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, inference.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, inference.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
