package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cubetrics/internal/config"
)

// Each scenario that touches the environment lives in its own test
// function: t.Setenv cleans up at function scope, and goconvey re-runs
// sibling branches on the same *testing.T, so env set in one branch
// would otherwise leak into the next.

func TestLoadDefaults(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		Convey("When loading with nothing set", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then the defaults apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.DatabaseDriver, ShouldEqual, "sqlite")
				So(cfg.Scorer, ShouldEqual, "heuristic")
				So(cfg.ModelVersion, ShouldEqual, "global_v2")
				So(cfg.TrainingInterval, ShouldEqual, 50)
				So(cfg.LiveWindow, ShouldEqual, 200)
			})
		})
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CUBETRICS_ADDR", ":7070")
	t.Setenv("CUBETRICS_SCORE_QUEUE_SIZE", "512")
	t.Setenv("CUBETRICS_SCORER", "model")

	Convey("Given environment overrides", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then the overrides win", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.ScoreQueueSize, ShouldEqual, 512)
			So(cfg.Scorer, ShouldEqual, "model")
			So(cfg.DatabaseDriver, ShouldEqual, "sqlite") // untouched default
		})
	})
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "addr: \":6060\"\ntraining_interval: 25\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CUBETRICS_CONFIG", path)

	Convey("Given a config file", t, func() {
		Convey("Then file values override defaults", func() {
			cfg, err := config.Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
			So(cfg.TrainingInterval, ShouldEqual, 25)
		})
	})
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "addr: \":6060\"\ntraining_interval: 25\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CUBETRICS_CONFIG", path)
	t.Setenv("CUBETRICS_ADDR", ":5050")

	Convey("Given both a config file and an env override", t, func() {
		cfg, err := config.Load(context.Background())

		Convey("Then env overrides the file", func() {
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":5050")
			So(cfg.TrainingInterval, ShouldEqual, 25)
		})
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CUBETRICS_CONFIG", "/does/not/exist.yaml")

	Convey("Given a config path that does not exist", t, func() {
		_, err := config.Load(context.Background())

		Convey("Then loading fails loudly", func() {
			So(err, ShouldWrap, config.ErrLoadConfig)
		})
	})
}

func TestLoadInvalidDriver(t *testing.T) {
	t.Setenv("CUBETRICS_DATABASE_DRIVER", "oracle")

	Convey("Given an unknown database driver", t, func() {
		_, err := config.Load(context.Background())
		So(err, ShouldWrap, config.ErrInvalidConfig)
	})
}

func TestLoadInvalidScorer(t *testing.T) {
	t.Setenv("CUBETRICS_SCORER", "oracle")

	Convey("Given an unknown scorer kind", t, func() {
		_, err := config.Load(context.Background())
		So(err, ShouldWrap, config.ErrInvalidConfig)
	})
}

func TestLoadInvalidTrainingInterval(t *testing.T) {
	t.Setenv("CUBETRICS_TRAINING_INTERVAL", "0")

	Convey("Given a non-positive training interval", t, func() {
		_, err := config.Load(context.Background())
		So(err, ShouldWrap, config.ErrInvalidConfig)
	})
}
