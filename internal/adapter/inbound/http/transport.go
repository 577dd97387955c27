// Package http provides the webhook transport adapter.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webcomputing/assistant-alexa/internal/port/inbound"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// HTTPTransport is the inbound adapter that connects voice platforms to the
// dispatcher over HTTP.
type HTTPTransport struct {
	dispatcher      inbound.Dispatcher
	server          *http.Server
	addr            string
	logger          *slog.Logger
	registry        *prometheus.Registry
	metrics         *Metrics       // Prometheus metrics
	healthChecker   *HealthChecker // Health check handler
	serviceName     string
	rateRequests    int
	rateWindow      time.Duration
	shutdownTimeout time.Duration
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) {
		t.healthChecker = hc
	}
}

// WithRateLimit limits webhook requests per client IP. A non-positive
// request count disables the limiter.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(t *HTTPTransport) {
		t.rateRequests = requests
		t.rateWindow = window
	}
}

// WithServiceName sets the name of the server spans.
func WithServiceName(name string) Option {
	return func(t *HTTPTransport) {
		t.serviceName = name
	}
}

// WithShutdownTimeout sets how long Start waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		t.shutdownTimeout = d
	}
}

// NewHTTPTransport creates an HTTP transport adapter wrapping the given dispatcher.
func NewHTTPTransport(dispatcher inbound.Dispatcher, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		dispatcher:      dispatcher,
		addr:            "127.0.0.1:8080",
		logger:          slog.Default(),
		serviceName:     "assistant-alexa",
		shutdownTimeout: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(t)
	}

	t.registry = prometheus.NewRegistry()
	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.metrics = NewMetrics(t.registry)
	return t
}

// Metrics returns the transport's Prometheus metrics.
func (t *HTTPTransport) Metrics() *Metrics {
	return t.metrics
}

// Handler builds the router with the full middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware order (outermost first):
	// 1. MetricsMiddleware - MUST be outermost to capture full duration
	// 2. RequestID - Extract/generate request ID and enrich logger
	// 3. RealIP - Extract client IP from X-Forwarded-For
	// 4. OTelHTTP - Server span, skips /health and /metrics
	r.Use(
		MetricsMiddleware(t.metrics),
		RequestIDMiddleware(t.logger),
		RealIPMiddleware,
		OTelHTTP(t.serviceName),
	)

	if t.healthChecker != nil {
		r.Method(http.MethodGet, "/health", t.healthChecker.Handler())
	} else {
		r.Method(http.MethodGet, "/health", healthHandler())
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))

	// Platforms decide by path, so every POST reaches the dispatcher.
	r.Group(func(r chi.Router) {
		if t.rateRequests > 0 {
			r.Use(RateLimit(t.rateRequests, t.rateWindow, t.metrics))
		}
		r.Method(http.MethodPost, "/*", webhookHandler(t.dispatcher, t.metrics))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Start begins accepting HTTP connections.
// It blocks until the context is cancelled or an error occurs.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel for server errors
	errCh := make(chan error, 1)

	go func() {
		t.logger.Info("starting HTTP server", "addr", t.addr)
		err := t.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.shutdownTimeout)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
