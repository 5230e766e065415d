// Package api holds the plain HTTP surface served next to the MCP SSE
// endpoints: health, metrics and routing.
package api

import (
	"net/http"
	"time"

	"github.com/51302890/mcp-mem0/internal/api/respond"
)

// HealthReporter exposes cached dependency health.
type HealthReporter interface {
	IsHealthy() bool
	Components() map[string]bool
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	reporter HealthReporter
	started  time.Time
}

func NewHealthHandler(r HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: r, started: time.Now()}
}

// CheckHealth answers 200 when every dependency is up and 503 otherwise; the
// body lists each component.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "healthy", http.StatusOK
	if !h.reporter.IsHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respond.WriteJSON(w, code, map[string]any{
		"status":     status,
		"components": h.reporter.Components(),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
