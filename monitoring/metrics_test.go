package monitoring

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	for i := 1; i <= 20; i++ {
		m.ObservePrediction(time.Duration(i)*time.Millisecond, false)
	}
	m.ObservePrediction(0, true)
	m.ObserveError(ReasonInvalidInput)
	m.ObserveError(ReasonInvalidInput)
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("bad artifact"))

	s := m.Snapshot()
	if s.Predictions != 21 || s.CacheHits != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.Errors[ReasonInvalidInput] != 2 {
		t.Fatalf("unexpected errors: %v", s.Errors)
	}
	if s.Reloads != 1 || s.ReloadFailures != 1 || s.LastReload == nil {
		t.Fatalf("unexpected reloads: %+v", s)
	}
	if s.LatencyMaxMs != 20 || s.LatencyP95Ms != 19 || s.LatencyAvgMs != 10.5 {
		t.Fatalf("unexpected latency: avg=%f p95=%f max=%f", s.LatencyAvgMs, s.LatencyP95Ms, s.LatencyMaxMs)
	}
}

func TestMetricsLatencyWindowWraps(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < latencyWindow; i++ {
		m.ObservePrediction(time.Second, false)
	}
	for i := 0; i < latencyWindow; i++ {
		m.ObservePrediction(time.Millisecond, false)
	}
	s := m.Snapshot()
	if s.LatencyP95Ms != 1 {
		t.Fatalf("expected old samples evicted, p95=%f", s.LatencyP95Ms)
	}
	if s.LatencyMaxMs != 1000 {
		t.Fatalf("max should cover all samples, got %f", s.LatencyMaxMs)
	}
}

func TestMetricsPrometheus(t *testing.T) {
	m := NewMetrics()
	m.ObservePrediction(time.Millisecond, false)
	m.ObserveError(ReasonNotReady)
	m.ObserveError(ReasonInternal)

	var sb strings.Builder
	if err := m.WritePrometheus(&sb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := sb.String()
	for _, want := range []string{
		"# TYPE xente_predictions_total counter\n",
		"xente_predictions_total 1\n",
		`xente_prediction_errors_total{reason="internal"} 1`,
		`xente_prediction_errors_total{reason="not_ready"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Count(out, "# TYPE xente_prediction_errors_total") != 1 {
		t.Fatalf("error family header must appear once:\n%s", out)
	}
}
