package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	scorequeue "github.com/okian/cubetrics/internal/adapters/mq/queue"
	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/internal/domain/stats"
	"github.com/okian/cubetrics/pkg/logger"
	"github.com/okian/cubetrics/pkg/metrics"
)

// IngestResult is what CreateSolve returns to the caller: the stored solve,
// its live rolling stats, and whether the submission was a replay.
type IngestResult struct {
	Solve     *model.Solve
	Stats     stats.RollingWindow
	Duplicate bool
}

// CreateSolve ingests a completed solve exactly once. A replayed
// (user, idempotency key) pair returns the original solve and current
// stats without re-inserting. The response covers persistence and the
// rolling-window recompute only; scoring is scheduled out of band and
// never blocks this path.
func (s *Service) CreateSolve(ctx context.Context, userID, idemKey string, payload model.SolvePayload) (IngestResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIngestionLatency(float64(time.Since(start).Milliseconds()))
	}()

	if !s.isStarted() {
		return IngestResult{}, ErrNotStarted
	}
	if idemKey == "" {
		return IngestResult{}, ErrMissingIdemKey
	}
	if err := payload.Validate(); err != nil {
		return IngestResult{}, err
	}

	// Fast path: the key was already used, return the original result.
	if res, ok, err := s.replay(ctx, userID, idemKey); err != nil {
		return IngestResult{}, err
	} else if ok {
		return res, nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	solve := &model.Solve{
		ID:            uuid.New(),
		UserID:        userID,
		Scramble:      payload.Scramble,
		TimeMs:        payload.TimeMs,
		Penalty:       payload.Penalty,
		Notes:         payload.Notes,
		CubeState:     payload.CubeState,
		SolutionMoves: joinMoves(payload.SolutionMoves),
		NumMoves:      payload.NumMoves,
		Source:        payload.Source,
		CreatedAt:     time.Now().UTC(),
	}
	if solve.Source == "" {
		solve.Source = "timer"
	}

	err := s.repo.CreateWithIdempotency(ctx, solve, idemKey)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// Lost a race against a concurrent duplicate submission. The
		// uniqueness constraint is the final arbiter; fall back to the
		// lookup path instead of erroring.
		if res, ok, replayErr := s.replay(ctx, userID, idemKey); replayErr == nil && ok {
			return res, nil
		}
		return IngestResult{}, fmt.Errorf("resolve duplicate submission: %w", err)
	}
	if err != nil {
		return IngestResult{}, err
	}
	metrics.RecordSolveIngested()

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return IngestResult{}, err
	}

	window, err := s.liveStatsLocked(ctx, userID, count)
	if err != nil {
		return IngestResult{}, err
	}

	// Write-through: the snapshot refresh happens with the mutation, not
	// lazily on the next dashboard read.
	s.RefreshSnapshots(ctx, userID, allRanges())

	// Fire and forget; the caller never waits for a score.
	if !s.enqueueScore(ctx, solve.ID, userID) {
		s.logger.Warn(ctx, "score request dropped",
			logger.String("solveID", solve.ID.String()),
		)
	}

	s.maybeEnqueueTraining(ctx, userID, count)

	return IngestResult{Solve: solve, Stats: window}, nil
}

// replay resolves a previously used idempotency key to its original result.
func (s *Service) replay(ctx context.Context, userID, idemKey string) (IngestResult, bool, error) {
	solveID, err := s.repo.LookupIdempotency(ctx, userID, idemKey)
	if errors.Is(err, repository.ErrNotFound) {
		return IngestResult{}, false, nil
	}
	if err != nil {
		return IngestResult{}, false, err
	}

	solve, err := s.repo.GetByID(ctx, solveID)
	if err != nil {
		return IngestResult{}, false, err
	}
	window, err := s.LiveStats(ctx, userID)
	if err != nil {
		return IngestResult{}, false, err
	}
	metrics.RecordSolveDuplicate()
	return IngestResult{Solve: solve, Stats: window, Duplicate: true}, true, nil
}

// enqueueScore schedules out-of-band scoring when the pipeline is up.
func (s *Service) enqueueScore(ctx context.Context, solveID uuid.UUID, userID string) bool {
	s.mu.RLock()
	q := s.scoreQueue
	s.mu.RUnlock()
	if q == nil {
		return false
	}
	return q.Enqueue(ctx, scorequeue.Request{SolveID: solveID, UserID: userID})
}

// maybeEnqueueTraining enqueues exactly one training job per threshold
// crossing. The trigger key encodes the crossing, so a race between
// concurrent ingestions resolves to a single job.
func (s *Service) maybeEnqueueTraining(ctx context.Context, userID string, count int64) {
	if s.trainingInterval <= 0 || count == 0 || count%int64(s.trainingInterval) != 0 {
		return
	}
	triggerKey := fmt.Sprintf("user:%s:threshold:%d", userID, count)
	reason := fmt.Sprintf("accumulated %d solves", count)
	if _, err := s.repo.Enqueue(ctx, userID, reason, triggerKey); err != nil {
		// Recorded, never raised: training must not fail ingestion.
		s.logger.Error(ctx, "training enqueue failed",
			logger.String("userID", userID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordTrainingJobEnqueued()
	s.logger.Info(ctx, "training job enqueued",
		logger.String("userID", userID),
		logger.Int64("solveCount", count),
	)
}

// LiveStats computes the rolling window over the user's most recent solves.
// A user with no solves gets all-null fields and count zero.
func (s *Service) LiveStats(ctx context.Context, userID string) (stats.RollingWindow, error) {
	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return stats.RollingWindow{}, err
	}
	return s.liveStatsLocked(ctx, userID, count)
}

// liveStatsLocked builds the window given a known total count.
func (s *Service) liveStatsLocked(ctx context.Context, userID string, count int64) (stats.RollingWindow, error) {
	recent, err := s.repo.Recent(ctx, userID, s.liveWindow)
	if err != nil {
		return stats.RollingWindow{}, err
	}

	attempts := make([]stats.Attempt, 0, len(recent))
	ids := make([]uuid.UUID, 0, len(recent))
	for i := range recent {
		eff, ok := recent[i].Effective()
		attempts = append(attempts, stats.Attempt{EffectiveMs: eff, DNF: !ok})
		ids = append(ids, recent[i].ID)
	}

	scoreByID, err := s.repo.LatestScores(ctx, ids)
	if err != nil {
		return stats.RollingWindow{}, err
	}
	scores := make([]float64, 0, len(scoreByID))
	for _, id := range ids {
		if sc, ok := scoreByID[id]; ok {
			scores = append(scores, sc)
		}
	}

	return stats.Window(attempts, scores, count), nil
}

// ListSolves pages the user's solves most recent first with an opaque
// cursor and optional penalty filter.
func (s *Service) ListSolves(ctx context.Context, userID string, cursor repository.Cursor, limit int, penalty *model.Penalty) ([]model.Solve, repository.Cursor, error) {
	if penalty != nil && !penalty.Valid() {
		return nil, "", ErrInvalidFilter
	}
	return s.repo.List(ctx, userID, cursor, limit, repository.Filters{Penalty: penalty})
}

// UpdateSolve edits a solve's mutable fields (penalty, notes) and refreshes
// the affected snapshots. Existing score records are left as they are:
// edits do not retroactively rescore.
func (s *Service) UpdateSolve(ctx context.Context, userID string, solveID uuid.UUID, penalty *model.Penalty, notes *string) (*model.Solve, error) {
	if penalty != nil && !penalty.Valid() {
		return nil, fmt.Errorf("%w: penalty must be one of none, %q, %q", model.ErrValidation, model.PenaltyPlus, model.PenaltyDNF)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	solve, err := s.repo.UpdatePenaltyNotes(ctx, userID, solveID, penalty, notes)
	if err != nil {
		return nil, err
	}
	s.RefreshSnapshots(ctx, userID, allRanges())
	return solve, nil
}

// DeleteSolve removes a solve and refreshes every snapshot window that
// could have contained it.
func (s *Service) DeleteSolve(ctx context.Context, userID string, solveID uuid.UUID) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.Delete(ctx, userID, solveID); err != nil {
		return err
	}
	s.RefreshSnapshots(ctx, userID, allRanges())
	return nil
}

// joinMoves flattens the collaborator-supplied move list for storage.
func joinMoves(moves []string) string {
	return strings.Join(moves, " ")
}
