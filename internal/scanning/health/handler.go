package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the health endpoints.
type Handler struct {
	monitor *Monitor
}

// NewHandler creates health HTTP handlers backed by monitor.
func NewHandler(monitor *Monitor) *Handler {
	return &Handler{monitor: monitor}
}

// Health reports the aggregate status with job counts. Critical maps to 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.CheckHealth(r.Context())

	response := map[string]any{
		"status": report.SystemStatus,
		"jobs":   report.Jobs,
	}
	w.Header().Set("Content-Type", "application/json")

	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}

// Detailed returns the full report.
func (h *Handler) Detailed(w http.ResponseWriter, r *http.Request) {
	report := h.monitor.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
