package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/cubetrics/internal/adapters/http/api"
	"github.com/okian/cubetrics/internal/adapters/repository"
	service "github.com/okian/cubetrics/internal/app"
	"github.com/okian/cubetrics/internal/config"
	"github.com/okian/cubetrics/internal/domain/scoring"
	"github.com/okian/cubetrics/internal/jobs/trainer"
	"github.com/okian/cubetrics/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Open the persistence layer and migrate the schema.
	store, err := repository.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "failed to open database", logger.Error(err))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "failed to close database", logger.Error(err))
		}
	}()

	// Skill prior injected by the surrounding deployment, if any.
	prior := service.StaticPrior{}
	if cfg.SkillPriorMs > 0 {
		v := cfg.SkillPriorMs
		prior.Ms = &v
	}

	// Select the scoring variant and the retraining handler that goes with it.
	var (
		scorer  scoring.Scorer
		handler trainer.Handler
	)
	switch cfg.Scorer {
	case "model":
		cache := scoring.NewBundleCache(cfg.ModelDir,
			scoring.WithLoadCooldown(time.Duration(cfg.ModelLoadCooldownSec)*time.Second),
		)
		scorer = scoring.NewModelScorer(cache, cfg.ModelVersion)
		handler = trainer.NewRecalibrator(store, cfg.ModelDir, cfg.ModelVersion,
			trainer.WithSkillPrior(prior.Ms),
		).Handle
	default:
		scorer = scoring.NewHeuristicScorer()
		handler = trainer.AcknowledgeHandler(log.Named("trainer"))
	}

	// Create and start the service with configuration options
	svc := service.New(
		service.WithLogger(log),
		service.WithRepository(store),
		service.WithScorer(scorer),
		service.WithPriorSource(prior),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.ScoreQueueSize),
		service.WithLiveWindow(cfg.LiveWindow),
		service.WithTrainingInterval(cfg.TrainingInterval),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	// Start the retraining worker against the durable job table.
	trainerWorker := trainer.New(store, handler,
		trainer.WithPollInterval(time.Duration(cfg.TrainerPollSec)*time.Second),
	)
	if err := trainerWorker.Start(ctx); err != nil {
		log.Error(ctx, "failed to start trainer", logger.Error(err))
		return
	}

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc)
	apiServer.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	// Wait for the trainer poll loop to exit before closing the database.
	select {
	case <-trainerWorker.Done():
	case <-time.After(shutdownTimeout):
	}

	log.Info(context.Background(), "server stopped")
}
