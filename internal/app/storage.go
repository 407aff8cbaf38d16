package app

import (
	"context"
	"fmt"

	"github.com/VladKovDev/raffle-bot/internal/config"
	"github.com/VladKovDev/raffle-bot/internal/domain/repository"
	"github.com/VladKovDev/raffle-bot/internal/infrastructure/repository/jsonfile"
	"github.com/VladKovDev/raffle-bot/internal/infrastructure/repository/postgres"
	"github.com/VladKovDev/raffle-bot/internal/infrastructure/repository/sqlite"
	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"go.uber.org/zap"
)

// initStore opens the state store selected by storage.driver. The pool is
// non-nil only for the postgres driver.
func initStore(ctx context.Context, cfg *config.Config, logger logger.Logger) (repository.StateRepository, *postgres.Pool, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverFile:
		store, err := jsonfile.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open state file: %w", err)
		}
		logger.Info("using file storage", zap.String("path", store.Path()))
		return store, nil, nil

	case config.StorageDriverSQLite:
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("using sqlite storage", zap.String("path", cfg.Storage.Path))
		return store, nil, nil

	case config.StorageDriverPostgres:
		pool, err := postgres.NewPool(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.NewPostgresStateRepository(ctx, pool.Pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func closeStore(logger logger.Logger, store repository.StateRepository, pool *postgres.Pool) {
	if err := store.Close(); err != nil {
		logger.Error("failed to close state store", zap.Error(err))
	}
	if pool != nil {
		logger.Info("closing database connections")
		pool.Close()
	}
}
