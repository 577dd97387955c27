package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// HealthResponse is the JSON response from the /health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`            // "healthy" or "unhealthy"
	Checks  map[string]string `json:"checks"`            // Component check results
	Version string            `json:"version,omitempty"` // Optional version info
}

// HealthChecker verifies component health.
type HealthChecker struct {
	platforms func() []string
	replies   func() int
	version   string
}

// NewHealthChecker creates a HealthChecker. platforms lists the registered
// platforms; replies reports the number of loaded reply rules. Either may
// be nil.
func NewHealthChecker(platforms func() []string, replies func() int, version string) *HealthChecker {
	return &HealthChecker{
		platforms: platforms,
		replies:   replies,
		version:   version,
	}
}

// Check performs health checks on all components.
func (h *HealthChecker) Check() HealthResponse {
	checks := make(map[string]string)
	healthy := true

	// A server without platforms rejects every webhook request.
	if h.platforms != nil {
		names := h.platforms()
		if len(names) == 0 {
			checks["platforms"] = "none registered"
			healthy = false
		} else {
			checks["platforms"] = "ok: " + strings.Join(names, ",")
		}
	} else {
		checks["platforms"] = "not configured"
	}

	if h.replies != nil {
		checks["replies"] = fmt.Sprintf("%d loaded", h.replies())
	} else {
		checks["replies"] = "not configured"
	}

	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthResponse{
		Status:  status,
		Checks:  checks,
		Version: h.version,
	}
}

// Handler returns an HTTP handler for the health endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check()

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}

		_ = json.NewEncoder(w).Encode(health)
	})
}

// healthHandler is the fallback when no HealthChecker is configured.
func healthHandler() http.Handler {
	return NewHealthChecker(nil, nil, "").Handler()
}
