package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okian/cubetrics/internal/domain/model"
)

// CreateIfAbsent inserts rec unless a record for the same (solve, version)
// exists, in which case the stored record wins. Re-scoring under the same
// version therefore always yields the same stored result.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *model.ScoreRecord) (*model.ScoreRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ComputedAt.IsZero() {
		rec.ComputedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, nil
	}
	if !isDuplicate(err) {
		return nil, fmt.Errorf("create score record: %w", err)
	}

	var existing model.ScoreRecord
	if err := s.db.WithContext(ctx).
		Where("solve_id = ? AND score_version = ?", rec.SolveID, rec.ScoreVersion).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("fetch existing score record: %w", err)
	}
	return &existing, nil
}

// Latest returns the most recently computed record for a solve.
func (s *Store) Latest(ctx context.Context, solveID uuid.UUID) (*model.ScoreRecord, error) {
	var rec model.ScoreRecord
	err := s.db.WithContext(ctx).
		Where("solve_id = ?", solveID).
		Order("computed_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest score: %w", err)
	}
	return &rec, nil
}

// BySolve returns all versioned records for a solve, newest first. History
// is append-only so every generation of scoring logic stays auditable.
func (s *Store) BySolve(ctx context.Context, solveID uuid.UUID) ([]model.ScoreRecord, error) {
	var recs []model.ScoreRecord
	err := s.db.WithContext(ctx).
		Where("solve_id = ?", solveID).
		Order("computed_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("score records by solve: %w", err)
	}
	return recs, nil
}

// LatestScores maps each solve id to its most recent score. Solves without
// a score are absent from the map.
func (s *Store) LatestScores(ctx context.Context, solveIDs []uuid.UUID) (map[uuid.UUID]float64, error) {
	out := make(map[uuid.UUID]float64, len(solveIDs))
	if len(solveIDs) == 0 {
		return out, nil
	}

	var recs []model.ScoreRecord
	err := s.db.WithContext(ctx).
		Where("solve_id IN ?", solveIDs).
		Order("computed_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("latest scores: %w", err)
	}
	// Ascending order means the last write per solve wins the map slot.
	for _, rec := range recs {
		out[rec.SolveID] = rec.Score
	}
	return out, nil
}
