package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

// Store is the relational side of the application: entities, roles,
// collections, permissions and documents.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to the database selected by driver ("postgres" or "sqlite").
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, apperrors.NewConfigValidationFailed("DATABASE_DRIVER", fmt.Sprintf("unsupported driver %q", driver))
	}

	log := logger.For("store")
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(log, time.Second),
	})
	if err != nil {
		return nil, apperrors.NewStoreQueryFailed("open "+driver, err)
	}

	return &Store{db: db, logger: log}, nil
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return apperrors.NewStoreQueryFailed("migrate", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewContextCancelled(operation, err)
	}
	return apperrors.NewStoreQueryFailed(operation, err)
}
