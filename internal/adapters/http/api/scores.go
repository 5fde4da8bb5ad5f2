package api

import (
	"errors"
	"net/http"

	"github.com/okian/cubetrics/internal/domain/scoring"
)

// ScoresHandler handles explicit scoring requests.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// HandleScore handles POST /solves/{id}/score requests. Re-invoking with
// the active version returns the stored record unchanged.
func (h *ScoresHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.deps.ScoreSolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, scoring.ErrModelLoad) || errors.Is(err, scoring.ErrScoringUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "scoring_unavailable", err)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleHistory handles GET /solves/{id}/scores requests, returning every
// versioned score record for the solve.
func (h *ScoresHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	recs, err := h.deps.ScoreHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
