// Package config defines service configuration structures and loading.
//
// Conventions:
// - Defaults come from New; file and env layers override them.
// - External errors are wrapped via this package's sentinel kinds.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver selects the persistence backend: sqlite or postgres.
	DatabaseDriver string `koanf:"database_driver"`

	// DatabaseDSN is the driver-specific connection string.
	DatabaseDSN string `koanf:"database_dsn"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// ScoreQueueSize bounds the in-memory score-request queue.
	ScoreQueueSize int `koanf:"score_queue_size"`

	// LiveWindow is how many recent solves feed the live rolling stats.
	LiveWindow int `koanf:"live_window"`

	// TrainingInterval is K: every K accumulated solves per user enqueues
	// one training job.
	TrainingInterval int `koanf:"training_interval"`

	// Scorer selects the scoring variant: heuristic or model.
	Scorer string `koanf:"scorer"`

	// ModelDir holds versioned scoring bundles as <version>.json files.
	ModelDir string `koanf:"model_dir"`

	// ModelVersion pins the bundle the model scorer loads.
	ModelVersion string `koanf:"model_version"`

	// ModelLoadCooldownSec is how long a failed bundle load is remembered
	// before a retry is allowed.
	ModelLoadCooldownSec int `koanf:"model_load_cooldown_sec"`

	// SkillPriorMs is the default skill prior handed to the scorer when
	// the identity collaborator supplies none. Zero disables it.
	SkillPriorMs int64 `koanf:"skill_prior_ms"`

	// TrainerPollSec is the trainer worker's idle polling interval.
	TrainerPollSec int `koanf:"trainer_poll_sec"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		DatabaseDriver:       "sqlite",
		DatabaseDSN:          "cubetrics.db",
		WorkerCount:          runtime.NumCPU(),
		ScoreQueueSize:       10_000,
		LiveWindow:           200,
		TrainingInterval:     50,
		Scorer:               "heuristic",
		ModelDir:             "models",
		ModelVersion:         "global_v2",
		ModelLoadCooldownSec: 30,
		TrainerPollSec:       2,
	}
}
