package api

import (
	"net/http"

	"github.com/driftbyte/hookline/internal/storage"
)

type StatsHandler struct {
	store storage.Storage
}

func NewStatsHandler(store storage.Storage) *StatsHandler {
	return &StatsHandler{store: store}
}

func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "org query parameter is required")
		return
	}

	stats, err := h.store.GetStats(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
