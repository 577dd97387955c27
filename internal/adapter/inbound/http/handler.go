package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/webcomputing/assistant-alexa/internal/ctxkey"
	"github.com/webcomputing/assistant-alexa/internal/domain/request"
	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
	"github.com/webcomputing/assistant-alexa/internal/service"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// errorResponse is the JSON body of every non-platform error.
type errorResponse struct {
	Error string `json:"error"`
}

// responseWriter writes the single platform response of a request.
type responseWriter struct {
	w       http.ResponseWriter
	metrics *Metrics

	mu      sync.Mutex
	written bool
}

func (rw *responseWriter) respond(_ context.Context, body []byte) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.written {
		return errors.New("response already written")
	}
	rw.written = true

	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(http.StatusOK)
	if _, err := rw.w.Write(body); err != nil {
		return err
	}
	if rw.metrics != nil {
		rw.metrics.ResponseBytes.Observe(float64(len(body)))
	}
	return nil
}

func (rw *responseWriter) done() bool {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.written
}

// webhookHandler hands platform requests to the dispatcher.
func webhookHandler(dispatcher inbound.Dispatcher, metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := LoggerFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large (max 1MB)")
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}

		req := request.NewContext(ctxkey.RequestID(r.Context()), r.Method, r.URL.Path, r.Header, body)
		rw := &responseWriter{w: w, metrics: metrics}

		platform, err := dispatcher.Dispatch(r.Context(), req, rw.respond)
		switch {
		case err == nil:
			recordDispatch(metrics, platform, "ok")
		case errors.Is(err, service.ErrNoPlatform):
			recordDispatch(metrics, "none", "no_platform")
			logger.Debug("no platform accepts request", "path", r.URL.Path)
			writeError(w, http.StatusNotFound, "no platform accepts the request")
		default:
			recordDispatch(metrics, platform, "error")
			logger.Error("request handling failed", "platform", platform, "error", err)
			if !rw.done() {
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}
	})
}

func recordDispatch(metrics *Metrics, platform, result string) {
	if metrics == nil {
		return
	}
	if platform == "" {
		platform = "none"
	}
	metrics.Dispatches.WithLabelValues(platform, result).Inc()
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
