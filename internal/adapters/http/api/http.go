// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/okian/cubetrics/internal/adapters/repository"
	service "github.com/okian/cubetrics/internal/app"
	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/internal/domain/stats"
)

// userHeader carries the authenticated user id. Identity itself is an
// external collaborator; the surrounding service injects this header.
const userHeader = "X-User-ID"

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateSolve(ctx context.Context, userID, idemKey string, payload model.SolvePayload) (service.IngestResult, error)
	LiveStats(ctx context.Context, userID string) (stats.RollingWindow, error)
	DashboardSummary(ctx context.Context, userID string, rangeID model.RangeID) (*model.DashboardSnapshot, error)
	ListSolves(ctx context.Context, userID string, cursor repository.Cursor, limit int, penalty *model.Penalty) ([]model.Solve, repository.Cursor, error)
	UpdateSolve(ctx context.Context, userID string, solveID uuid.UUID, penalty *model.Penalty, notes *string) (*model.Solve, error)
	DeleteSolve(ctx context.Context, userID string, solveID uuid.UUID) error
	ScoreSolve(ctx context.Context, solveID uuid.UUID) (*model.ScoreRecord, error)
	ScoreHistory(ctx context.Context, solveID uuid.UUID) ([]model.ScoreRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	solves  *SolvesHandler
	stats   *StatsHandler
	scores  *ScoresHandler
	health  *HealthHandler
	metrics *MetricsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		solves:  NewSolvesHandler(deps),
		stats:   NewStatsHandler(deps),
		scores:  NewScoresHandler(deps),
		health:  NewHealthHandler(),
		metrics: NewMetricsHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /solves", MetricsMiddleware(s.solves.HandleCreate, "solves"))
	mux.HandleFunc("GET /solves", MetricsMiddleware(s.solves.HandleList, "solves"))
	mux.HandleFunc("PATCH /solves/{id}", MetricsMiddleware(s.solves.HandleUpdate, "solve"))
	mux.HandleFunc("DELETE /solves/{id}", MetricsMiddleware(s.solves.HandleDelete, "solve"))
	mux.HandleFunc("POST /solves/{id}/score", MetricsMiddleware(s.scores.HandleScore, "score"))
	mux.HandleFunc("GET /solves/{id}/scores", MetricsMiddleware(s.scores.HandleHistory, "scores"))
	mux.HandleFunc("GET /live-stats", MetricsMiddleware(s.stats.HandleLiveStats, "live-stats"))
	mux.HandleFunc("GET /summary", MetricsMiddleware(s.stats.HandleSummary, "summary"))
	mux.HandleFunc("GET /healthz", s.health.HandleHealth)
	mux.HandleFunc("GET /metrics", s.metrics.HandleMetrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, service.ErrMissingIdemKey),
		errors.Is(err, service.ErrUnknownRange),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, repository.ErrInvalidCursor),
		errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// requireUser extracts the user id header, writing a 401 when missing.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", ErrMissingUser)
		return "", false
	}
	return userID, true
}

// pathID parses the {id} wildcard as a solve id.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
