package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything whose reachability the health check reports
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Checks   map[string]string `json:"checks"`
	Datetime time.Time         `json:"datetime"`
}

// HealthHandler reports liveness and backing-store reachability
type HealthHandler struct {
	checks  map[string]Pinger
	started time.Time
	timeout time.Duration
}

// NewHealthHandler creates a health handler over the named dependencies
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		started: time.Now(),
		timeout: 2 * time.Second,
	}
}

// Health handles GET /health. Any failed check turns the response into a 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:   "healthy",
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Checks:   make(map[string]string, len(h.checks)),
		Datetime: time.Now().UTC(),
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = "unreachable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
