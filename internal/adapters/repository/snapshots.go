package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/okian/cubetrics/internal/domain/model"
)

// Get returns the freshest snapshot for (user, range). The dashboard read
// path is this single point query.
func (s *Store) Get(ctx context.Context, userID string, rangeID model.RangeID) (*model.DashboardSnapshot, error) {
	var snap model.DashboardSnapshot
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND range_id = ?", userID, rangeID).
		Order("as_of_bucket DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

// Put replaces the snapshot for its (user, range, bucket) key in one
// transaction so readers never observe a partial update. ComputedAt carries
// the refresh trigger time: a write older than the stored one is discarded
// with ErrStaleSnapshot: last writer by trigger timestamp wins, not last
// writer by arrival.
func (s *Store) Put(ctx context.Context, snap *model.DashboardSnapshot) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.DashboardSnapshot
		err := tx.
			Where("user_id = ? AND range_id = ? AND as_of_bucket = ?",
				snap.UserID, snap.RangeID, snap.AsOfBucket).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(snap).Error
		case err != nil:
			return err
		}

		if existing.ComputedAt.After(snap.ComputedAt) {
			return ErrStaleSnapshot
		}
		return tx.Model(&model.DashboardSnapshot{}).
			Where("user_id = ? AND range_id = ? AND as_of_bucket = ?",
				snap.UserID, snap.RangeID, snap.AsOfBucket).
			Select("*").
			Omit("user_id", "range_id", "as_of_bucket").
			Updates(snap).Error
	})
	if err != nil {
		if errors.Is(err, ErrStaleSnapshot) {
			return ErrStaleSnapshot
		}
		if isDuplicate(err) {
			// A concurrent writer created the row between our read and
			// create; treat the loss like any other stale write.
			return ErrStaleSnapshot
		}
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
