package scoring

import (
	"context"
	"math"
	"time"

	"github.com/okian/cubetrics/internal/domain/stats"
)

// ModelScorer scores solves with a learned model loaded from a versioned
// on-disk bundle through a shared BundleCache.
type ModelScorer struct {
	cache   *BundleCache
	version string
}

// NewModelScorer creates a model scorer pinned to a bundle version.
func NewModelScorer(cache *BundleCache, version string) *ModelScorer {
	return &ModelScorer{cache: cache, version: version}
}

// Version identifies the bundle this scorer uses.
func (s *ModelScorer) Version() string { return s.version }

// Score computes the model-backed score. The risk heads run on the scaled
// feature vector; the score itself compares the solve against its pre-solve
// baseline so later solves can never leak into the expectation.
func (s *ModelScorer) Score(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	bundle, err := s.cache.Get(s.version)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	base := baseline(in)
	expected := int64(math.Round(base))

	if in.DNF {
		return Result{
			Score:          minScore,
			ScoreVersion:   s.version,
			ExpectedTimeMs: &expected,
			DNFRisk:        1,
			Plus2Risk:      0,
			ComputedAt:     now,
		}, nil
	}

	raw := buildFeatures(in, base)
	scaled := bundle.scale(raw)

	ratio := 1.0
	if base > 0 {
		ratio = float64(in.EffectiveMs) / base
	}

	return Result{
		Score:          scoreFromRatio(ratio, bundle.Curve.Steepness),
		ScoreVersion:   s.version,
		ExpectedTimeMs: &expected,
		DNFRisk:        bundle.DNFModel.predictProba(scaled),
		Plus2Risk:      bundle.Plus2Model.predictProba(scaled),
		ComputedAt:     now,
	}, nil
}

// buildFeatures assembles the named feature vector for the risk heads.
// History is oldest first; the trimmed averages want most recent first.
func buildFeatures(in Input, base float64) map[string]float64 {
	recentFirst := make([]stats.Attempt, 0, len(in.History))
	for i := len(in.History) - 1; i >= 0; i-- {
		recentFirst = append(recentFirst, stats.Attempt{EffectiveMs: in.History[i]})
	}

	eff := float64(in.EffectiveMs)
	f := map[string]float64{
		"effective_time_ms":    eff,
		"has_plus2":            0,
		"ao5_ms":               base,
		"ao12_ms":              base,
		"baseline50_ms":        base,
		"std10_ms":             0,
		"ratio_vs_baseline":    1,
		"delta_vs_baseline_ms": eff - base,
		"skill_prior_ms":       base,
		"num_moves":            float64(in.NumMoves),
		"solve_index":          float64(in.SolveIndex),
	}
	if in.HasPlus2 {
		f["has_plus2"] = 1
	}
	if ao5 := stats.AoN(recentFirst, stats.Ao5Size); ao5.Ms != nil {
		f["ao5_ms"] = float64(*ao5.Ms)
	}
	if ao12 := stats.AoN(recentFirst, stats.Ao12Size); ao12.Ms != nil {
		f["ao12_ms"] = float64(*ao12.Ms)
	}
	if sd, ok := stats.StdDev(in.History, stdWindow); ok {
		f["std10_ms"] = sd
	}
	if in.SkillPriorMs != nil {
		f["skill_prior_ms"] = float64(*in.SkillPriorMs)
	}
	if base > 0 {
		f["ratio_vs_baseline"] = eff / base
	}
	return f
}
