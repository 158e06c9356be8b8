package handler

import (
	"context"
	"net/http"
	"time"
)

// readyTimeout bounds the agent probe behind GET /ready.
const readyTimeout = 5 * time.Second

// handleHealth handles GET /health. It never touches the agent.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. It connects to the agent if needed.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.bridge.Ready(ctx); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Agent:  h.bridge.Status().State,
	})
}
