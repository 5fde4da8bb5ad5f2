// Package scoring turns a completed solve into a normalized 0-100 quality
// score. Two interchangeable scorer kinds sit behind one interface: a
// deterministic heuristic and a learned-model scorer backed by a versioned
// on-disk bundle.
package scoring

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cubetrics/internal/domain/stats"
)

// Score bounds and curve defaults.
const (
	minScore         = 0
	maxScore         = 100
	defaultSteepness = 4.0
	stdWindow        = 10
)

// HeuristicVersion identifies the built-in heuristic scorer lineage.
const HeuristicVersion = "heuristic_v1"

// Input carries everything a scorer needs about one solve and its context.
// History holds effective times oldest first, excluding the solve itself.
type Input struct {
	SolveID      uuid.UUID
	UserID       string
	EffectiveMs  int64
	DNF          bool
	HasPlus2     bool
	NumMoves     int
	SolveIndex   int
	History      []int64
	SkillPriorMs *int64
}

// Result is a computed score plus the model outputs that explain it.
type Result struct {
	Score          float64
	ScoreVersion   string
	ExpectedTimeMs *int64
	DNFRisk        float64
	Plus2Risk      float64
	ComputedAt     time.Time
}

// Scorer computes a score for a solve.
type Scorer interface {
	// Score computes a score, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
	// Version identifies the scoring logic and bundle that Score will use.
	Version() string
}

// baseline returns the pre-solve expectation: median of history, else the
// skill prior, else the solve's own effective time as a last resort.
func baseline(in Input) float64 {
	if med, ok := stats.Median(in.History); ok {
		return med
	}
	if in.SkillPriorMs != nil {
		return float64(*in.SkillPriorMs)
	}
	return float64(in.EffectiveMs)
}

// scoreFromRatio maps actual-vs-expected time onto 0-100. ratio < 1 means
// faster than expected. The logistic shape keeps the score strictly
// decreasing in ratio, which is a required property of the engine.
func scoreFromRatio(ratio, steepness float64) float64 {
	score := maxScore / (1 + math.Exp(steepness*(ratio-1)))
	return math.Max(minScore, math.Min(maxScore, score))
}

// HeuristicScorer is the deterministic fallback scorer: a pure function of
// effective time, skill prior and recent-history position.
type HeuristicScorer struct {
	steepness float64
}

// NewHeuristicScorer creates a heuristic scorer.
func NewHeuristicScorer(opts ...HeuristicOption) *HeuristicScorer {
	s := &HeuristicScorer{steepness: defaultSteepness}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HeuristicOption configures a HeuristicScorer.
type HeuristicOption func(*HeuristicScorer)

// WithSteepness sets the score curve steepness.
func WithSteepness(k float64) HeuristicOption {
	return func(s *HeuristicScorer) {
		if k > 0 {
			s.steepness = k
		}
	}
}

// Version identifies the heuristic lineage.
func (s *HeuristicScorer) Version() string { return HeuristicVersion }

// Score computes the heuristic score. A DNF solve is scored as maximal
// risk, not excluded.
func (s *HeuristicScorer) Score(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	now := time.Now().UTC()
	if in.DNF {
		res := Result{
			Score:        minScore,
			ScoreVersion: HeuristicVersion,
			DNFRisk:      1,
			ComputedAt:   now,
		}
		if med, ok := stats.Median(in.History); ok {
			exp := int64(math.Round(med))
			res.ExpectedTimeMs = &exp
		} else if in.SkillPriorMs != nil {
			exp := *in.SkillPriorMs
			res.ExpectedTimeMs = &exp
		}
		return res, nil
	}

	base := baseline(in)
	ratio := 1.0
	if base > 0 {
		ratio = float64(in.EffectiveMs) / base
	}
	expected := int64(math.Round(base))

	return Result{
		Score:          scoreFromRatio(ratio, s.steepness),
		ScoreVersion:   HeuristicVersion,
		ExpectedTimeMs: &expected,
		DNFRisk:        0,
		Plus2Risk:      0,
		ComputedAt:     now,
	}, nil
}
