package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports liveness plus the state of registered dependencies.
type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
	logger  *logging.Logger
}

func NewHealthHandler(logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{checks: map[string]HealthCheck{}, timeout: 2 * time.Second, logger: logger}
}

// Register adds a named dependency check. Not safe after serving starts.
func (h *HealthHandler) Register(name string, check HealthCheck) *HealthHandler {
	if check != nil {
		h.checks[name] = check
	}
	return h
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("health check failed", "component", name, "error", err)
			body[name] = err.Error()
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	writeJSON(w, status, body)
}
