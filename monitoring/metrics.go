package monitoring

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"
)

const latencyWindow = 256

// 错误原因
const (
	ReasonInvalidInput = "invalid_input"
	ReasonNotReady     = "not_ready"
	ReasonCanceled     = "canceled"
	ReasonInternal     = "internal"
)

// Metrics 预测服务的进程内指标
type Metrics struct {
	mu sync.Mutex

	startTime      time.Time
	predictions    uint64
	cacheHits      uint64
	errors         map[string]uint64
	reloads        uint64
	reloadFailures uint64
	lastReload     time.Time

	// 最近latencyWindow次计算的耗时，环形缓冲
	latencies  [latencyWindow]time.Duration
	latencyN   int
	latencyMax time.Duration
	latencySum time.Duration
	computed   uint64
}

// NewMetrics 创建指标收集器
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		errors:    make(map[string]uint64),
	}
}

// ObservePrediction 记录一次成功的预测
func (m *Metrics) ObservePrediction(elapsed time.Duration, cached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.predictions++
	if cached {
		m.cacheHits++
		return
	}
	m.latencies[m.computed%latencyWindow] = elapsed
	m.computed++
	if m.latencyN < latencyWindow {
		m.latencyN++
	}
	m.latencySum += elapsed
	if elapsed > m.latencyMax {
		m.latencyMax = elapsed
	}
}

// ObserveError 按原因记录失败的预测
func (m *Metrics) ObserveError(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[reason]++
}

// ObserveReload 记录一次模型加载
func (m *Metrics) ObserveReload(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.reloadFailures++
		return
	}
	m.reloads++
	m.lastReload = time.Now()
}

// Snapshot 指标快照
type Snapshot struct {
	Uptime         string            `json:"uptime"`
	Predictions    uint64            `json:"predictions"`
	CacheHits      uint64            `json:"cache_hits"`
	CacheHitRate   float64           `json:"cache_hit_rate"`
	Errors         map[string]uint64 `json:"errors"`
	Reloads        uint64            `json:"reloads"`
	ReloadFailures uint64            `json:"reload_failures"`
	LastReload     *time.Time        `json:"last_reload,omitempty"`
	LatencyAvgMs   float64           `json:"latency_avg_ms"`
	LatencyP95Ms   float64           `json:"latency_p95_ms"`
	LatencyMaxMs   float64           `json:"latency_max_ms"`
	Goroutines     int               `json:"goroutines"`
	HeapAllocBytes uint64            `json:"heap_alloc_bytes"`
}

// Snapshot 获取当前指标
func (m *Metrics) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Uptime:         time.Since(m.startTime).Round(time.Second).String(),
		Predictions:    m.predictions,
		CacheHits:      m.cacheHits,
		Errors:         make(map[string]uint64, len(m.errors)),
		Reloads:        m.reloads,
		ReloadFailures: m.reloadFailures,
		LatencyMaxMs:   millis(m.latencyMax),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
	for k, v := range m.errors {
		s.Errors[k] = v
	}
	if m.predictions > 0 {
		s.CacheHitRate = float64(m.cacheHits) / float64(m.predictions)
	}
	if !m.lastReload.IsZero() {
		t := m.lastReload
		s.LastReload = &t
	}
	if m.computed > 0 {
		s.LatencyAvgMs = millis(m.latencySum) / float64(m.computed)
		s.LatencyP95Ms = millis(m.percentile(0.95))
	}
	return s
}

func (m *Metrics) percentile(q float64) time.Duration {
	window := make([]time.Duration, m.latencyN)
	copy(window, m.latencies[:m.latencyN])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
	idx := int(q*float64(len(window))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(window) {
		idx = len(window) - 1
	}
	return window[idx]
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// WritePrometheus 导出Prometheus文本格式
func (m *Metrics) WritePrometheus(w io.Writer) error {
	s := m.Snapshot()

	var errs []error
	write := func(name, typ, help string, value float64, labels string) {
		if help != "" {
			_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
			errs = append(errs, err)
		}
		_, err := fmt.Fprintf(w, "%s%s %g\n", name, labels, value)
		errs = append(errs, err)
	}

	write("xente_predictions_total", "counter", "Predictions served.", float64(s.Predictions), "")
	write("xente_cache_hits_total", "counter", "Predictions served from cache.", float64(s.CacheHits), "")

	reasons := make([]string, 0, len(s.Errors))
	for reason := range s.Errors {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for i, reason := range reasons {
		help := ""
		if i == 0 {
			help = "Failed predictions by reason."
		}
		write("xente_prediction_errors_total", "counter", help, float64(s.Errors[reason]), fmt.Sprintf(`{reason=%q}`, reason))
	}

	write("xente_model_reloads_total", "counter", "Successful artifact loads.", float64(s.Reloads), "")
	write("xente_model_reload_failures_total", "counter", "Failed artifact loads.", float64(s.ReloadFailures), "")
	write("xente_prediction_latency_p95_ms", "gauge", "95th percentile inference latency over the recent window.", s.LatencyP95Ms, "")
	write("xente_goroutines", "gauge", "Number of goroutines.", float64(s.Goroutines), "")

	return errors.Join(errs...)
}
