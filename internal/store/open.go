// Package store selects the game.Store backend named by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"racket/internal/config"
	"racket/internal/db"
	"racket/internal/game"
	"racket/internal/store/memory"
	"racket/internal/store/postgres"
	"racket/internal/store/sqlite"
)

// Open connects the configured backend and brings its schema up to date.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (game.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{AppName: cfg.AppName, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("storage ready", "driver", cfg.Driver)
		return st, nil
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("storage ready", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return st, nil
	case config.DriverMemory:
		logger.Warn("using in-memory storage; ledgers are lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
