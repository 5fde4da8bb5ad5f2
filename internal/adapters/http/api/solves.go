package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/model"
)

// idemKeyHeader carries the client retry token for solve creation.
const idemKeyHeader = "Idempotency-Key"

// SolvesHandler handles solve CRUD requests.
type SolvesHandler struct {
	deps Dependencies
}

// NewSolvesHandler creates a new solves handler.
func NewSolvesHandler(deps Dependencies) *SolvesHandler {
	return &SolvesHandler{deps: deps}
}

// solveRequest mirrors the JSON body for POST /solves.
type solveRequest struct {
	Scramble      string        `json:"scramble"`
	TimeMs        int64         `json:"timeMs"`
	Penalty       model.Penalty `json:"penalty"`
	Notes         string        `json:"notes"`
	CubeState     string        `json:"cubeState"`
	SolutionMoves []string      `json:"solutionMoves"`
	NumMoves      int           `json:"numMoves"`
	Source        string        `json:"source"`
}

// createResponse pairs the stored solve with its live rolling stats.
type createResponse struct {
	Solve     any  `json:"solve"`
	LiveStats any  `json:"liveStats"`
	Duplicate bool `json:"duplicate"`
}

// HandleCreate handles POST /solves requests.
func (h *SolvesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	result, err := h.deps.CreateSolve(r.Context(), userID, r.Header.Get(idemKeyHeader), model.SolvePayload{
		Scramble:      req.Scramble,
		TimeMs:        req.TimeMs,
		Penalty:       req.Penalty,
		Notes:         req.Notes,
		CubeState:     req.CubeState,
		SolutionMoves: req.SolutionMoves,
		NumMoves:      req.NumMoves,
		Source:        req.Source,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, createResponse{
		Solve:     result.Solve,
		LiveStats: result.Stats,
		Duplicate: result.Duplicate,
	})
}

// listResponse pages solves with an opaque continuation cursor.
type listResponse struct {
	Solves     []model.Solve `json:"solves"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// HandleList handles GET /solves?cursor=&limit=&penalty= requests.
func (h *SolvesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}

	var penalty *model.Penalty
	if raw, present := queryPenalty(r); present {
		penalty = &raw
	}

	cursor := repository.Cursor(r.URL.Query().Get("cursor"))
	solves, next, err := h.deps.ListSolves(r.Context(), userID, cursor, limit, penalty)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Solves: solves, NextCursor: string(next)})
}

// updateRequest carries the mutable solve fields; nil means unchanged.
type updateRequest struct {
	Penalty *model.Penalty `json:"penalty"`
	Notes   *string        `json:"notes"`
}

// HandleUpdate handles PATCH /solves/{id} requests.
func (h *SolvesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	solve, err := h.deps.UpdateSolve(r.Context(), userID, id, req.Penalty, req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, solve)
}

// HandleDelete handles DELETE /solves/{id} requests.
func (h *SolvesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.deps.DeleteSolve(r.Context(), userID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryPenalty reads the penalty filter; "none" selects unpenalized solves.
func queryPenalty(r *http.Request) (model.Penalty, bool) {
	if !r.URL.Query().Has("penalty") {
		return model.PenaltyNone, false
	}
	raw := r.URL.Query().Get("penalty")
	if raw == "none" {
		return model.PenaltyNone, true
	}
	return model.Penalty(raw), true
}
