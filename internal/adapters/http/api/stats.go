package api

import (
	"net/http"

	"github.com/okian/cubetrics/internal/domain/model"
)

// StatsHandler handles live stats and dashboard summary requests.
type StatsHandler struct {
	deps Dependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// HandleLiveStats handles GET /live-stats requests.
func (h *StatsHandler) HandleLiveStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	window, err := h.deps.LiveStats(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}

// HandleSummary handles GET /summary?range= requests, serving the
// precomputed dashboard snapshot.
func (h *StatsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	rangeID := model.RangeID(r.URL.Query().Get("range"))
	if rangeID == "" {
		rangeID = model.RangeAll
	}

	snap, err := h.deps.DashboardSummary(r.Context(), userID, rangeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
