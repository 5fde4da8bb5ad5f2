// Package service provides the core solve analytics service: the ingestion
// gateway, the write-through snapshot cache and the scoring facade wired
// behind the HTTP API.
package service

import (
	"context"
	"sync"

	scorequeue "github.com/okian/cubetrics/internal/adapters/mq/queue"
	workerpool "github.com/okian/cubetrics/internal/adapters/mq/worker"
	"github.com/okian/cubetrics/internal/adapters/repository"
	"github.com/okian/cubetrics/internal/domain/scoring"
	"github.com/okian/cubetrics/pkg/logger"
)

// Defaults for the service configuration.
const (
	defaultWorkerCount      = 4
	defaultQueueSize        = 10000
	defaultLiveWindow       = 200
	defaultTrainingInterval = 50
	defaultHistoryDepth     = 80
)

// Repository is the persistence surface the service needs. The GORM store
// satisfies it; tests may swap in anything else that does.
type Repository interface {
	repository.SolveStore
	repository.ScoreStore
	repository.SnapshotStore
	repository.JobStore
}

// PriorSource supplies a user's skill prior, the baseline ability estimate
// the identity collaborator derives from self-reported averages. A nil
// prior means the user has none yet.
type PriorSource interface {
	SkillPriorMs(ctx context.Context, userID string) (*int64, error)
}

// StaticPrior returns the same prior for every user. Useful as a default
// and in tests.
type StaticPrior struct {
	Ms *int64
}

// SkillPriorMs implements PriorSource.
func (p StaticPrior) SkillPriorMs(_ context.Context, _ string) (*int64, error) {
	return p.Ms, nil
}

// Service implements the API dependencies for the solve analytics engine.
type Service struct {
	mu sync.RWMutex

	// Core components
	repo       Repository
	scorer     scoring.Scorer
	prior      PriorSource
	scoreQueue scorequeue.Queue
	workerPool *workerpool.Pool

	// Per-user mutual exclusion: concurrent ingestions for one user must
	// not interleave into an inconsistent rolling window.
	userLocks sync.Map // userID -> *sync.Mutex

	// Coalesces concurrent snapshot refreshes per (user, range) key. A
	// trigger landing while a rebuild is in flight marks the key dirty so
	// the owner re-runs before releasing waiters; joining the in-flight
	// rebuild alone could store an aggregate missing the joiner's data.
	refreshStates sync.Map // key -> *refreshState

	// Configuration
	workerCount      int
	queueSize        int
	liveWindow       int
	trainingInterval int
	historyDepth     int

	// State
	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRepository sets the persistence backend.
func WithRepository(repo Repository) Option {
	return func(s *Service) {
		if repo != nil {
			s.repo = repo
		}
	}
}

// WithScorer sets the scorer variant (heuristic or model).
func WithScorer(sc scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithPriorSource sets the skill prior supplier.
func WithPriorSource(p PriorSource) Option {
	return func(s *Service) {
		if p != nil {
			s.prior = p
		}
	}
}

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the score queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLiveWindow sets how many recent solves feed the live rolling stats.
func WithLiveWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.liveWindow = n
		}
	}
}

// WithTrainingInterval sets K: every K accumulated solves for a user
// enqueues one training job.
func WithTrainingInterval(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.trainingInterval = k
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      defaultWorkerCount,
		queueSize:        defaultQueueSize,
		liveWindow:       defaultLiveWindow,
		trainingInterval: defaultTrainingInterval,
		historyDepth:     defaultHistoryDepth,
		prior:            StaticPrior{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the async scoring pipeline.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.repo == nil {
		return ErrNoRepository
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.scorer == nil {
		s.scorer = scoring.NewHeuristicScorer()
	}

	s.scoreQueue = scorequeue.NewInMemoryQueue(
		scorequeue.WithCapacity(s.queueSize),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.scoreQueue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "solve analytics service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("scoreVersion", s.scorer.Version()),
	)
	return nil
}

// Stop gracefully shuts down the async pipeline. Scoring requests have no
// caller waiting, so anything still queued is simply dropped; the solves
// stay unscored until a later re-score.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.scoreQueue != nil {
		_ = s.scoreQueue.Close()
	}
	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(context.Background())
	}
	s.started = false
	s.logger.Info(context.Background(), "solve analytics service stopped")
}

// isStarted reports whether Start has completed.
func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// userLock returns the mutex serializing ingestion for one user.
func (s *Service) userLock(userID string) *sync.Mutex {
	lock, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
