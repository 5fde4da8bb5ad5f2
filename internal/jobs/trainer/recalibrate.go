package trainer

import (
	"context"

	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/internal/domain/scoring"
	"github.com/okian/cubetrics/pkg/logger"
)

// defaultSampleSize is how many recent solves feed one recalibration pass.
const defaultSampleSize = 500

// Recalibrator is the default retraining handler for model-backed scoring.
// A full model refit happens offline; the in-process job refreshes the
// bundle's feature scaling from the triggering user's recent solves so the
// risk heads keep seeing standardized inputs as the population drifts.
type Recalibrator struct {
	solves  repository.SolveStore
	dir     string
	version string
	sample  int
	prior   *int64

	logger logger.Logger
}

// RecalibratorOption applies a configuration option to the Recalibrator.
type RecalibratorOption func(*Recalibrator)

// WithSampleSize sets how many recent solves one pass reads.
func WithSampleSize(n int) RecalibratorOption {
	return func(r *Recalibrator) {
		if n > 0 {
			r.sample = n
		}
	}
}

// WithSkillPrior sets the default skill prior used when reconstructing
// feature vectors.
func WithSkillPrior(ms *int64) RecalibratorOption {
	return func(r *Recalibrator) {
		r.prior = ms
	}
}

// WithRecalibratorLogger sets a custom logger.
func WithRecalibratorLogger(l logger.Logger) RecalibratorOption {
	return func(r *Recalibrator) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecalibrator creates the default model-recalibration handler.
func NewRecalibrator(solves repository.SolveStore, dir, version string, opts ...RecalibratorOption) *Recalibrator {
	r := &Recalibrator{
		solves:  solves,
		dir:     dir,
		version: version,
		sample:  defaultSampleSize,
		logger:  logger.Get().Named("recalibrator"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle runs one recalibration pass for the job's user.
func (r *Recalibrator) Handle(ctx context.Context, job *model.TrainingJob) error {
	bundle, err := scoring.LoadBundle(r.dir, r.version)
	if err != nil {
		return err
	}

	solves, err := r.solves.Recent(ctx, job.UserID, r.sample)
	if err != nil {
		return err
	}

	updated := scoring.Recalibrate(bundle, r.buildInputs(solves))
	if updated == bundle {
		r.logger.Debug(ctx, "recalibration skipped, sample too small",
			logger.String("userID", job.UserID),
			logger.Int("solves", len(solves)),
		)
		return nil
	}
	if err := scoring.SaveBundle(r.dir, updated); err != nil {
		return err
	}

	r.logger.Info(ctx, "bundle recalibrated",
		logger.String("userID", job.UserID),
		logger.String("version", r.version),
		logger.Int("solves", len(solves)),
	)
	return nil
}

// buildInputs replays the user's solves oldest first, giving each one the
// history that existed when it happened.
func (r *Recalibrator) buildInputs(solves []model.Solve) []scoring.Input {
	inputs := make([]scoring.Input, 0, len(solves))
	history := make([]int64, 0, len(solves))

	for i := len(solves) - 1; i >= 0; i-- {
		s := solves[i]
		eff, ok := s.Effective()
		in := scoring.Input{
			SolveID:      s.ID,
			UserID:       s.UserID,
			DNF:          !ok,
			HasPlus2:     s.Penalty == model.PenaltyPlus,
			NumMoves:     s.NumMoves,
			SolveIndex:   len(solves) - i,
			History:      append([]int64(nil), history...),
			SkillPriorMs: r.prior,
		}
		if ok {
			in.EffectiveMs = eff
			history = append(history, eff)
		}
		inputs = append(inputs, in)
	}
	return inputs
}
