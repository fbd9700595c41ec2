package server

import (
	"context"
	"net/http"
	"time"

	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
)

// readinessTimeout bounds all readiness checks of one request.
const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler handles liveness requests
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements http.Handler for health checks
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, map[string]string{"status": "ok"})
}

// ReadyHandler runs every named check and answers 503 if any fails.
type ReadyHandler struct {
	checks map[string]ReadinessCheck
}

// NewReadyHandler creates a readiness handler. With no checks it always
// reports ready.
func NewReadyHandler(checks map[string]ReadinessCheck) *ReadyHandler {
	return &ReadyHandler{checks: checks}
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	resp := readyResponse{Status: "ready"}
	status := http.StatusOK

	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			log.LogWarnWithFields("health", "Readiness check failed", map[string]any{
				"check": name,
				"error": err.Error(),
			})
			resp.Checks[name] = "unavailable"
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	_ = jsonwriter.WriteResponse(w, status, resp)
}
