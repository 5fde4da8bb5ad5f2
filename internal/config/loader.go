package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. file (YAML) if CUBETRICS_CONFIG is set
//  3. env (prefix CUBETRICS_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CUBETRICS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Env keys like CUBETRICS_SCORE_QUEUE_SIZE map to score_queue_size;
	// underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("CUBETRICS_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "cubetrics_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database_driver must be sqlite or postgres, got %q", ErrInvalidConfig, c.DatabaseDriver)
	}
	switch c.Scorer {
	case "heuristic", "model":
	default:
		return fmt.Errorf("%w: scorer must be heuristic or model, got %q", ErrInvalidConfig, c.Scorer)
	}
	if c.TrainingInterval < 1 {
		return fmt.Errorf("%w: training_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
