package handler

import (
	"net/http"

	"github.com/notifyhub/realtime-delivery/internal/hub"
	"github.com/notifyhub/realtime-delivery/internal/processor"
)

// StatsHandler serves the operational snapshot: queue status counts and
// processor configuration on one side, live hub membership on the other.
// Raw Prometheus metrics are served separately at /metrics via promhttp.
type StatsHandler struct {
	proc *processor.Processor
	hub  *hub.Hub
}

func NewStatsHandler(proc *processor.Processor, h *hub.Hub) *StatsHandler {
	return &StatsHandler{proc: proc, hub: h}
}

// GetStats handles GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	procStats, err := h.proc.GetStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to collect queue stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"queue": procStats,
		"hub":   h.hub.Stats(),
	})
}
