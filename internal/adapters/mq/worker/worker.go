// Package worker runs the asynchronous scoring pool. Workers drain the
// score-request queue and hand each solve to the scoring engine; failures
// are recorded and counted, never propagated back to ingestion.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cubetrics/internal/adapters/mq/queue"
	"github.com/okian/cubetrics/pkg/logger"
	"github.com/okian/cubetrics/pkg/metrics"
)

// Worker shutdown bounds.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Request is what workers read off the queue.
type Request = queue.Request

// Engine scores one stored solve and persists the result.
type Engine interface {
	ScoreStored(ctx context.Context, solveID uuid.UUID) error
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// Worker processes score requests until stopped.
type Worker struct {
	queue  Queue
	engine Engine
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker with configuration options.
func New(q Queue, engine Engine, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		engine:   engine,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			w.process(ctx, req)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process scores one request. There is no caller waiting, so errors stop
// here: log, count, continue.
func (w *Worker) process(ctx context.Context, req Request) {
	start := time.Now()
	err := w.engine.ScoreStored(ctx, req.SolveID)
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordScoringError()
		w.logger.Error(ctx, "scoring failed",
			logger.String("solveID", req.SolveID.String()),
			logger.String("userID", req.UserID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordSolveScored()
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*Worker
	queue   Queue

	logger logger.Logger
}

// NewPool creates workerCount workers; non-positive counts default to the
// CPU count.
func NewPool(workerCount int, q Queue, engine Engine) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = New(q, engine, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for each.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		close(w.shutdown)
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue, then waits for the workers to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
