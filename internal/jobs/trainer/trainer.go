// Package trainer runs the retraining job worker. It talks to the request
// path only through the durable job table, so it can run in a separate
// process: ingestion enqueues, the worker claims, runs and finishes jobs.
package trainer

import (
	"context"
	"errors"
	"time"

	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/pkg/logger"
	"github.com/okian/cubetrics/pkg/metrics"
)

// defaultPollInterval is how often an idle worker checks for queued jobs.
const defaultPollInterval = 2 * time.Second

// Handler performs the actual retraining for one claimed job.
type Handler func(ctx context.Context, job *model.TrainingJob) error

// AcknowledgeHandler marks jobs done without retraining anything. The
// heuristic scorer has no trainable parameters, so deployments running it
// still drain the job queue instead of letting it grow.
func AcknowledgeHandler(l logger.Logger) Handler {
	return func(ctx context.Context, job *model.TrainingJob) error {
		l.Debug(ctx, "training job acknowledged, nothing to retrain",
			logger.String("jobID", job.ID.String()),
			logger.String("userID", job.UserID),
		)
		return nil
	}
}

// Worker polls the job store and runs claimed jobs to a terminal state.
type Worker struct {
	jobs    repository.JobStore
	handler Handler
	poll    time.Duration

	done chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithPollInterval sets the idle polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a trainer worker.
func New(jobs repository.JobStore, handler Handler, opts ...Option) *Worker {
	w := &Worker{
		jobs:    jobs,
		handler: handler,
		poll:    defaultPollInterval,
		done:    make(chan struct{}),
		logger:  logger.Get().Named("trainer"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start reconciles jobs orphaned by a previous run, then launches the poll
// loop. In-flight jobs from a stopped worker are failed, never assumed
// complete.
func (w *Worker) Start(ctx context.Context) error {
	reconciled, err := w.jobs.ReconcileRunning(ctx)
	if err != nil {
		return err
	}
	if reconciled > 0 {
		w.logger.Warn(ctx, "reconciled orphaned training jobs", logger.Int("count", int(reconciled)))
	}

	go w.run(ctx)
	return nil
}

// Done closes once the poll loop has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(context.Background(), "trainer stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and runs jobs until the queue is empty.
func (w *Worker) drain(ctx context.Context) {
	for {
		job, err := w.jobs.ClaimNext(ctx)
		switch {
		case errors.Is(err, repository.ErrNoJob):
			return
		case errors.Is(err, repository.ErrJobClaimConflict):
			// Another worker won this one; try the next.
			continue
		case err != nil:
			w.logger.Error(ctx, "claim failed", logger.Error(err))
			return
		}
		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *model.TrainingJob) {
	start := time.Now()
	err := w.handler(ctx, job)
	metrics.RecordTrainingDuration(float64(time.Since(start).Milliseconds()))

	if err != nil {
		// Failed is terminal: no automatic retry, so a systematically
		// broken training routine cannot loop silently.
		w.logger.Error(ctx, "training job failed",
			logger.String("jobID", job.ID.String()),
			logger.String("userID", job.UserID),
			logger.Error(err),
		)
		metrics.RecordTrainingJobFailed()
		if markErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			w.logger.Error(ctx, "mark failed errored", logger.Error(markErr))
		}
		return
	}

	metrics.RecordTrainingJobDone()
	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		w.logger.Error(ctx, "mark done errored", logger.Error(err))
	}
}
