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

// Enqueue creates a queued training job. The unique trigger key makes the
// call idempotent per threshold crossing: a racing ingestion that loses the
// insert gets the already-stored job back.
func (s *Store) Enqueue(ctx context.Context, userID, reason, triggerKey string) (*model.TrainingJob, error) {
	job := &model.TrainingJob{
		ID:          uuid.New(),
		UserID:      userID,
		Reason:      reason,
		TriggerKey:  triggerKey,
		Status:      model.JobQueued,
		RequestedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, nil
	}
	if !isDuplicate(err) {
		return nil, fmt.Errorf("enqueue training job: %w", err)
	}

	var existing model.TrainingJob
	if err := s.db.WithContext(ctx).
		Where("trigger_key = ?", triggerKey).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("fetch existing training job: %w", err)
	}
	return &existing, nil
}

// ClaimNext atomically transitions the oldest queued job to running. The
// guarded update is the ownership check: zero rows affected means another
// worker won, and the caller simply moves on.
func (s *Store) ClaimNext(ctx context.Context) (*model.TrainingJob, error) {
	var job model.TrainingJob
	err := s.db.WithContext(ctx).
		Where("status = ?", model.JobQueued).
		Order("requested_at ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("find queued job: %w", err)
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&model.TrainingJob{}).
		Where("id = ? AND status = ?", job.ID, model.JobQueued).
		Updates(map[string]any{"status": model.JobRunning, "started_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("claim job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrJobClaimConflict
	}

	job.Status = model.JobRunning
	job.StartedAt = &now
	return &job, nil
}

// MarkDone finishes a running job successfully.
func (s *Store) MarkDone(ctx context.Context, id uuid.UUID) error {
	return s.finish(ctx, id, model.JobDone, "")
}

// MarkFailed finishes a job with its error captured. Failed is terminal;
// operators re-enqueue explicitly.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.finish(ctx, id, model.JobFailed, errMsg)
}

func (s *Store) finish(ctx context.Context, id uuid.UUID, status model.JobStatus, errMsg string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&model.TrainingJob{}).
		Where("id = ? AND status = ?", id, model.JobRunning).
		Updates(map[string]any{
			"status":        status,
			"finished_at":   now,
			"error_message": errMsg,
		})
	if res.Error != nil {
		return fmt.Errorf("finish job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReconcileRunning fails jobs orphaned in running by a stopped worker. An
// interrupted run must never be assumed complete.
func (s *Store) ReconcileRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&model.TrainingJob{}).
		Where("status = ?", model.JobRunning).
		Updates(map[string]any{
			"status":        model.JobFailed,
			"finished_at":   now,
			"error_message": "interrupted by worker restart",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("reconcile running jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// GetJob fetches one training job.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*model.TrainingJob, error) {
	var job model.TrainingJob
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}
