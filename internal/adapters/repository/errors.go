package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey surfaces a uniqueness-constraint violation. For
	// idempotency records the constraint is the final arbiter under
	// concurrent duplicate submissions: the losing writer sees this and
	// falls back to the lookup path.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrStaleSnapshot means a snapshot write observed a newer refresh
	// already applied; the stale refresh is discarded.
	ErrStaleSnapshot = errors.New("stale snapshot write")

	// ErrJobClaimConflict means another worker claimed the job first.
	// Expected under concurrent workers; the loser moves on.
	ErrJobClaimConflict = errors.New("job already claimed")

	// ErrNoJob means the queue has no claimable job.
	ErrNoJob = errors.New("no queued job")

	ErrInvalidCursor = errors.New("invalid cursor")
	ErrInvalidLimit  = errors.New("invalid list limit")
)
