// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Penalty marks the outcome adjustment applied to a solve.
type Penalty string

// Penalty values.
const (
	PenaltyNone Penalty = ""
	PenaltyPlus Penalty = "+2"
	PenaltyDNF  Penalty = "DNF"
)

// Valid reports whether p is one of the known penalty values.
func (p Penalty) Valid() bool {
	switch p {
	case PenaltyNone, PenaltyPlus, PenaltyDNF:
		return true
	}
	return false
}

// plus2PenaltyMs is the time added to a raw time by a "+2" penalty.
const plus2PenaltyMs = 2000

// cubeStateLen is the length of a 3x3 facelet string (6 faces x 9 stickers).
const (
	cubeStateLen    = 54
	cubeStateColors = 6
	stickersPerFace = 9
)

// Solve is a single recorded attempt. Scramble, time, cube state, solution
// and creation timestamp are immutable once created; Penalty and Notes may
// be edited afterwards.
type Solve struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        string    `gorm:"column:user_id;index:idx_solves_user_created,priority:1;not null" json:"userId"`
	Scramble      string    `gorm:"column:scramble;not null" json:"scramble"`
	TimeMs        int64     `gorm:"column:time_ms;not null" json:"timeMs"`
	Penalty       Penalty   `gorm:"column:penalty;size:8" json:"penalty"`
	Notes         string    `gorm:"column:notes" json:"notes"`
	CubeState     string    `gorm:"column:cube_state;size:64" json:"cubeState,omitempty"`
	SolutionMoves string    `gorm:"column:solution_moves" json:"solutionMoves,omitempty"`
	NumMoves      int       `gorm:"column:num_moves" json:"numMoves"`
	Source        string    `gorm:"column:source;size:32" json:"source"`
	CreatedAt     time.Time `gorm:"column:created_at;index:idx_solves_user_created,priority:2" json:"createdAt"`
}

// TableName returns the solves table name.
func (*Solve) TableName() string { return "solves" }

// EffectiveTimeMs returns the penalty-adjusted time for ranking and
// averaging. The second return value is false for DNF solves, which have no
// numeric effective time.
func EffectiveTimeMs(timeMs int64, penalty Penalty) (int64, bool) {
	switch penalty {
	case PenaltyDNF:
		return 0, false
	case PenaltyPlus:
		return timeMs + plus2PenaltyMs, true
	default:
		return timeMs, true
	}
}

// Effective returns the solve's effective time, false for DNF.
func (s *Solve) Effective() (int64, bool) {
	return EffectiveTimeMs(s.TimeMs, s.Penalty)
}

// ValidateCubeState checks the basic shape of a 3x3 facelet string: exactly
// 54 characters, exactly 6 distinct characters, each appearing exactly 9
// times. It does not prove the state is physically solvable; the solver
// collaborator is the final judge of that.
func ValidateCubeState(state string) error {
	if len(state) != cubeStateLen {
		return fmt.Errorf("%w: cube state must be exactly %d characters, got %d", ErrValidation, cubeStateLen, len(state))
	}
	counts := make(map[rune]int, cubeStateColors)
	for _, r := range state {
		counts[r]++
	}
	if len(counts) != cubeStateColors {
		return fmt.Errorf("%w: cube state must use exactly %d colors, found %d", ErrValidation, cubeStateColors, len(counts))
	}
	for r, n := range counts {
		if n != stickersPerFace {
			return fmt.Errorf("%w: color %q appears %d times, want %d", ErrValidation, r, n, stickersPerFace)
		}
	}
	return nil
}

// SolvePayload is the client-supplied body for creating a solve. Scramble
// and TimeMs are required; the rest is optional opaque collaborator data.
type SolvePayload struct {
	Scramble      string
	TimeMs        int64
	Penalty       Penalty
	Notes         string
	CubeState     string
	SolutionMoves []string
	NumMoves      int
	Source        string
}

// Validate checks the payload before any persistence attempt.
func (p *SolvePayload) Validate() error {
	if strings.TrimSpace(p.Scramble) == "" {
		return fmt.Errorf("%w: scramble is required", ErrValidation)
	}
	if p.TimeMs < 0 {
		return fmt.Errorf("%w: timeMs must not be negative", ErrValidation)
	}
	if !p.Penalty.Valid() {
		return fmt.Errorf("%w: penalty must be one of none, %q, %q", ErrValidation, PenaltyPlus, PenaltyDNF)
	}
	if p.CubeState != "" {
		if err := ValidateCubeState(p.CubeState); err != nil {
			return err
		}
	}
	return nil
}

// IdempotencyRecord maps a client retry token to the solve it produced.
// Created atomically with the solve row, then only ever read.
type IdempotencyRecord struct {
	UserID    string    `gorm:"column:user_id;uniqueIndex:uq_idem_user_key,priority:1;not null"`
	Key       string    `gorm:"column:idempotency_key;uniqueIndex:uq_idem_user_key,priority:2;not null"`
	SolveID   uuid.UUID `gorm:"column:solve_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName returns the idempotency table name.
func (*IdempotencyRecord) TableName() string { return "idempotency_records" }
