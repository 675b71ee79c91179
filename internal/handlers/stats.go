package handlers

import (
	"log/slog"
	"net/http"

	apierr "github.com/picstash/picstash/internal/errors"
	"github.com/picstash/picstash/internal/index"
)

// StatsHandler reports per-namespace object counts from the upload index.
type StatsHandler struct {
	index index.Store
}

func NewStatsHandler(idx index.Store) *StatsHandler {
	return &StatsHandler{index: idx}
}

type statsResponse struct {
	Success    bool             `json:"success"`
	Namespaces map[string]int64 `json:"namespaces"`
	Total      int64            `json:"total"`
}

// Stats handles GET /stats. Counts come from the advisory index, which is
// reconciled against storage at startup; they may lag writes made by other
// processes.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		writeJSON(w, http.StatusOK, statsResponse{Success: true, Namespaces: map[string]int64{}})
		return
	}

	counts, err := h.index.Stats(r.Context())
	if err != nil {
		slog.Error("load upload stats", "error", err)
		WriteError(w, apierr.ErrInternal)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Success:    true,
		Namespaces: counts,
		Total:      total,
	})
}
