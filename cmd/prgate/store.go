package main

import (
	"context"
	"fmt"
	"log/slog"

	"prgate/internal/config"
	"prgate/internal/migration"
	"prgate/internal/repository"
	"prgate/internal/repository/memory"
	"prgate/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openStore builds the repository backend named by cfg.StorageDriver. The
// returned close func releases its resources.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Repository, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data will not survive a restart")
		return memory.NewRepo(), func() {}, nil

	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.DBConn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		if err := migration.Run(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		return postgres.NewRepo(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
