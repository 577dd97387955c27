package http

import (
	"net/http"
	"time"
)

// unmeteredPaths are probed by monitoring and never reach a platform.
var unmeteredPaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
}

// MetricsMiddleware records request duration by method and request count by
// method and outcome. Outcomes separate requests a platform rejected (4xx)
// from server failures (5xx), since Alexa retries neither.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := unmeteredPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(r.Method, outcome(rec.status)).Inc()
		})
	}
}

// statusRecorder captures the first status code written.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// outcome maps a status code to the requests_total outcome label.
func outcome(code int) string {
	switch {
	case code < 400:
		return "ok"
	case code < 500:
		return "rejected"
	default:
		return "error"
	}
}
