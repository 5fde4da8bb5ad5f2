// Package repository provides durable storage for solves, scores,
// snapshots, idempotency records and training jobs on top of GORM.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cubetrics/internal/domain/model"
)

// Filters narrows a solve listing.
type Filters struct {
	Penalty *model.Penalty
	Since   *time.Time
	Until   *time.Time
}

// SolveStore persists solves and their idempotency records.
type SolveStore interface {
	// CreateWithIdempotency inserts the solve and its idempotency record in
	// one transaction. A uniqueness conflict on (user, key) returns
	// ErrDuplicateKey; the caller resolves it via LookupIdempotency.
	CreateWithIdempotency(ctx context.Context, solve *model.Solve, idemKey string) error

	// LookupIdempotency resolves a previously used key to its solve id.
	LookupIdempotency(ctx context.Context, userID, key string) (uuid.UUID, error)

	GetByID(ctx context.Context, id uuid.UUID) (*model.Solve, error)

	// Recent returns up to limit solves, most recent first.
	Recent(ctx context.Context, userID string, limit int) ([]model.Solve, error)

	CountByUser(ctx context.Context, userID string) (int64, error)

	// List pages solves most recent first with a keyset cursor so that
	// concurrent inserts never shift page boundaries. An empty returned
	// cursor means the listing is exhausted.
	List(ctx context.Context, userID string, cursor Cursor, limit int, f Filters) ([]model.Solve, Cursor, error)

	// UpdatePenaltyNotes edits the only mutable solve fields. Nil leaves a
	// field unchanged.
	UpdatePenaltyNotes(ctx context.Context, userID string, id uuid.UUID, penalty *model.Penalty, notes *string) (*model.Solve, error)

	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

// ScoreStore persists score records, append-only per version lineage.
type ScoreStore interface {
	// CreateIfAbsent inserts rec unless a record for the same
	// (solve, version) already exists, in which case the stored record is
	// returned unchanged. This makes scoring idempotent per version.
	CreateIfAbsent(ctx context.Context, rec *model.ScoreRecord) (*model.ScoreRecord, error)

	// Latest returns the most recently computed record for a solve.
	Latest(ctx context.Context, solveID uuid.UUID) (*model.ScoreRecord, error)

	// BySolve returns all versioned records for a solve, newest first.
	BySolve(ctx context.Context, solveID uuid.UUID) ([]model.ScoreRecord, error)

	// LatestScores maps each solve id to its most recent score, skipping
	// solves that have none.
	LatestScores(ctx context.Context, solveIDs []uuid.UUID) (map[uuid.UUID]float64, error)
}

// SnapshotStore persists the write-through dashboard aggregates.
type SnapshotStore interface {
	// Get returns the freshest snapshot for (user, range).
	Get(ctx context.Context, userID string, rangeID model.RangeID) (*model.DashboardSnapshot, error)

	// Put replaces the snapshot for its key atomically. A write whose
	// ComputedAt (the refresh trigger time) is older than the stored one
	// returns ErrStaleSnapshot and leaves the newer data in place.
	Put(ctx context.Context, snap *model.DashboardSnapshot) error
}

// JobStore is the durable retraining job queue.
type JobStore interface {
	// Enqueue creates a queued job. triggerKey is unique: enqueuing the
	// same threshold crossing twice returns the existing job, so racing
	// ingestions cannot produce duplicates.
	Enqueue(ctx context.Context, userID, reason, triggerKey string) (*model.TrainingJob, error)

	// ClaimNext atomically transitions the oldest queued job to running.
	// Returns ErrNoJob when nothing is claimable and ErrJobClaimConflict
	// when another worker won the transition.
	ClaimNext(ctx context.Context) (*model.TrainingJob, error)

	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error

	// ReconcileRunning fails jobs left in running by a stopped worker.
	// Called on worker restart; returns the number of jobs reconciled.
	ReconcileRunning(ctx context.Context) (int64, error)

	GetJob(ctx context.Context, id uuid.UUID) (*model.TrainingJob, error)
}
