package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/internal/domain/scoring"
)

// ScoreSolve computes and stores the score for one solve under the active
// score version. Idempotent per (solve, version): repeating the call with
// an unchanged solve returns the stored record; a new version appends a new
// record and leaves history intact.
func (s *Service) ScoreSolve(ctx context.Context, solveID uuid.UUID) (*model.ScoreRecord, error) {
	s.mu.RLock()
	scorer := s.scorer
	s.mu.RUnlock()
	if scorer == nil {
		return nil, scoring.ErrScoringUnavailable
	}

	solve, err := s.repo.GetByID(ctx, solveID)
	if err != nil {
		return nil, err
	}

	input, err := s.buildScoringInput(ctx, solve)
	if err != nil {
		return nil, err
	}

	result, err := scorer.Score(ctx, input)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateIfAbsent(ctx, &model.ScoreRecord{
		SolveID:        solve.ID,
		UserID:         solve.UserID,
		Score:          result.Score,
		ScoreVersion:   result.ScoreVersion,
		ExpectedTimeMs: result.ExpectedTimeMs,
		DNFRisk:        result.DNFRisk,
		Plus2Risk:      result.Plus2Risk,
		ComputedAt:     result.ComputedAt,
	})
}

// ScoreStored is the worker-pool entry point: same computation, result
// discarded because nobody is waiting on it.
func (s *Service) ScoreStored(ctx context.Context, solveID uuid.UUID) error {
	_, err := s.ScoreSolve(ctx, solveID)
	return err
}

// ScoreHistory returns every versioned score record for a solve, newest
// first.
func (s *Service) ScoreHistory(ctx context.Context, solveID uuid.UUID) ([]model.ScoreRecord, error) {
	return s.repo.BySolve(ctx, solveID)
}

// buildScoringInput assembles the solve's scoring context: effective time,
// penalty flags, the pre-solve history and the user's skill prior.
func (s *Service) buildScoringInput(ctx context.Context, solve *model.Solve) (scoring.Input, error) {
	eff, ok := solve.Effective()

	recent, err := s.repo.Recent(ctx, solve.UserID, s.historyDepth+1)
	if err != nil {
		return scoring.Input{}, err
	}

	// Keep only solves strictly before this one, oldest first, with a
	// numeric effective time.
	history := make([]int64, 0, len(recent))
	priorCount := 0
	for i := len(recent) - 1; i >= 0; i-- {
		r := &recent[i]
		if r.ID == solve.ID || r.CreatedAt.After(solve.CreatedAt) {
			continue
		}
		priorCount++
		if e, numeric := r.Effective(); numeric {
			history = append(history, e)
		}
	}

	prior, err := s.prior.SkillPriorMs(ctx, solve.UserID)
	if err != nil {
		return scoring.Input{}, err
	}

	return scoring.Input{
		SolveID:      solve.ID,
		UserID:       solve.UserID,
		EffectiveMs:  eff,
		DNF:          !ok,
		HasPlus2:     solve.Penalty == model.PenaltyPlus,
		NumMoves:     solve.NumMoves,
		SolveIndex:   priorCount + 1,
		History:      history,
		SkillPriorMs: prior,
	}, nil
}
