package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		status      int
		wantLabel   string
		wantSamples uint64
	}{
		{"webhook ok", http.MethodPost, "/alexa", http.StatusOK, "ok", 1},
		{"webhook not found", http.MethodPost, "/unknown", http.StatusNotFound, "rejected", 1},
		{"rate limited", http.MethodPost, "/alexa", http.StatusTooManyRequests, "rejected", 1},
		{"webhook failure", http.MethodPost, "/alexa", http.StatusInternalServerError, "error", 1},
		{"skips metrics", http.MethodGet, "/metrics", http.StatusOK, "ok", 0},
		{"skips health", http.MethodGet, "/health", http.StatusOK, "ok", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)

			handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(tt.method, tt.wantLabel))
			if got != float64(tt.wantSamples) {
				t.Errorf("requests_total{%s,%s} = %v, want %d", tt.method, tt.wantLabel, got, tt.wantSamples)
			}

			var m dto.Metric
			if err := metrics.RequestDuration.WithLabelValues(tt.method).(prometheus.Histogram).Write(&m); err != nil {
				t.Fatal(err)
			}
			if m.GetHistogram().GetSampleCount() != tt.wantSamples {
				t.Errorf("request_duration_seconds samples = %d, want %d", m.GetHistogram().GetSampleCount(), tt.wantSamples)
			}
		})
	}
}

func TestMetricsMiddleware_FirstStatusWins(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
		w.WriteHeader(http.StatusInternalServerError) // superfluous, ignored by net/http
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/alexa", nil))

	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodPost, "ok")); got != 1 {
		t.Errorf("requests_total{POST,ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(http.MethodPost, "error")); got != 0 {
		t.Errorf("requests_total{POST,error} = %v, want 0", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := map[int]string{200: "ok", 302: "ok", 400: "rejected", 404: "rejected", 413: "rejected", 429: "rejected", 500: "error", 503: "error"}
	for code, want := range tests {
		if got := outcome(code); got != want {
			t.Errorf("outcome(%d) = %q, want %q", code, got, want)
		}
	}
}
