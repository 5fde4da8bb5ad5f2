package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/cubetrics/internal/domain/model"
	"github.com/okian/cubetrics/pkg/logger"
)

// Store bundles the entity stores over one GORM connection. It satisfies
// SolveStore, ScoreStore, SnapshotStore and JobStore.
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

var (
	_ SolveStore    = (*Store)(nil)
	_ ScoreStore    = (*Store)(nil)
	_ SnapshotStore = (*Store)(nil)
	_ JobStore      = (*Store)(nil)
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open connects to the configured database and migrates the schema.
// Supported drivers: "sqlite", "postgres".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&model.Solve{},
		&model.IdempotencyRecord{},
		&model.ScoreRecord{},
		&model.DashboardSnapshot{},
		&model.TrainingJob{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &Store{db: db, log: logger.Get().Named("repository")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isDuplicate reports whether err is a uniqueness-constraint violation.
// GORM translates most of these to ErrDuplicatedKey; the string checks
// cover dialects where translation falls short.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
