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

// defaultListLimit bounds a single page when the caller asks for nothing.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateWithIdempotency inserts the solve and its idempotency record in one
// transaction. The unique (user, key) index is the final arbiter under
// concurrent duplicate submissions.
func (s *Store) CreateWithIdempotency(ctx context.Context, solve *model.Solve, idemKey string) error {
	if solve.ID == uuid.Nil {
		solve.ID = uuid.New()
	}
	if solve.CreatedAt.IsZero() {
		solve.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model.IdempotencyRecord{
			UserID:    solve.UserID,
			Key:       idemKey,
			SolveID:   solve.ID,
			CreatedAt: solve.CreatedAt,
		}).Error; err != nil {
			return err
		}
		return tx.Create(solve).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: idempotency key %q", ErrDuplicateKey, idemKey)
		}
		return fmt.Errorf("create solve: %w", err)
	}
	return nil
}

// LookupIdempotency resolves a previously used key to its solve id.
func (s *Store) LookupIdempotency(ctx context.Context, userID, key string) (uuid.UUID, error) {
	var rec model.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return rec.SolveID, nil
}

// GetByID fetches a single solve.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*model.Solve, error) {
	var solve model.Solve
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&solve).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get solve: %w", err)
	}
	return &solve, nil
}

// Recent returns up to limit solves for the user, most recent first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]model.Solve, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var solves []model.Solve
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&solves).Error
	if err != nil {
		return nil, fmt.Errorf("recent solves: %w", err)
	}
	return solves, nil
}

// CountByUser returns the user's full solve count.
func (s *Store) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Solve{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count solves: %w", err)
	}
	return n, nil
}

// List pages solves most recent first using the opaque keyset cursor.
func (s *Store) List(ctx context.Context, userID string, cursor Cursor, limit int, f Filters) ([]model.Solve, Cursor, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		return nil, "", fmt.Errorf("%w: %d exceeds %d", ErrInvalidLimit, limit, maxListLimit)
	}

	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)

	if !cursor.IsZero() {
		ts, id, err := cursor.Decode()
		if err != nil {
			return nil, "", err
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", ts, ts, id.String())
	}
	if f.Penalty != nil {
		q = q.Where("penalty = ?", *f.Penalty)
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", *f.Until)
	}

	var solves []model.Solve
	if err := q.Find(&solves).Error; err != nil {
		return nil, "", fmt.Errorf("list solves: %w", err)
	}

	var next Cursor
	if len(solves) == limit {
		last := solves[len(solves)-1]
		next = EncodeCursor(last.CreatedAt, last.ID)
	}
	return solves, next, nil
}

// UpdatePenaltyNotes edits the only mutable fields of a solve. Nil leaves a
// field unchanged. Immutable core fields are never touched here.
func (s *Store) UpdatePenaltyNotes(ctx context.Context, userID string, id uuid.UUID, penalty *model.Penalty, notes *string) (*model.Solve, error) {
	updates := map[string]any{}
	if penalty != nil {
		updates["penalty"] = *penalty
	}
	if notes != nil {
		updates["notes"] = *notes
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Solve{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update solve: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetByID(ctx, id)
}

// Delete removes a solve. The caller is responsible for refreshing any
// snapshot windows that contained it.
func (s *Store) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Solve{})
	if res.Error != nil {
		return fmt.Errorf("delete solve: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
