package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	// ErrScoringUnavailable means no usable scorer or bundle exists; the
	// solve persists and the score stays null until a re-score succeeds.
	ErrScoringUnavailable = errors.New("scoring unavailable")

	// ErrModelLoad wraps bundle load failures. Cached briefly to avoid
	// hammering a broken bundle path, then eligible for retry.
	ErrModelLoad = errors.New("model bundle load failed")
)
