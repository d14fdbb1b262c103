package api

import (
	"net/http"

	"github.com/ashureev/tradevoice/internal/conversation"
)

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status        string                      `json:"status"`
	Service       string                      `json:"service,omitempty"`
	Conversations int                         `json:"conversations,omitempty"`
	ActiveWatches int                         `json:"active_watches,omitempty"`
	Sinks         *conversation.DispatchStats `json:"sinks,omitempty"`
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// AgentsHealth reports liveness of the agents routes with relay counters.
func (h *Handler) AgentsHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Service:       "agents",
		Conversations: len(h.logs.IDs()),
		ActiveWatches: h.watches.Count(),
	}
	if h.sinkStats != nil {
		stats := h.sinkStats()
		resp.Sinks = &stats
	}
	JSON(w, http.StatusOK, resp)
}
