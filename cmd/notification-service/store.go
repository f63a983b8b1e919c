package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"kickspot/internal/config"
	"kickspot/internal/repository"
	"kickspot/pkg/db"
	"kickspot/pkg/outbox"
)

// storage bundles the notification store with the Postgres pool and outbox
// repository when the postgres driver is used.
type storage struct {
	store  repository.NotificationStore
	pool   *pgxpool.Pool
	outbox *outbox.Repository
}

func (s *storage) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// openStorage connects to the configured database and applies migrations.
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	if cfg.DB.IsSQLite() {
		log.Info("Opening SQLite store", zap.String("path", cfg.DB.Path))
		store, err := repository.NewSQLiteStore(ctx, cfg.DB.Path, log)
		if err != nil {
			return nil, err
		}
		return &storage{store: store}, nil
	}

	log.Info("Initializing database connection...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
	)
	pool, err := db.NewConnection(ctx, cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}

	applied, err := repository.MigratePostgres(ctx, pool, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	log.Info("Database ready", zap.Int("migrations_applied", applied))

	s := &storage{pool: pool}
	if cfg.Outbox.Enabled {
		s.outbox = outbox.NewRepository(pool)
	}
	s.store = repository.NewPostgresStore(pool, s.outbox, log)
	return s, nil
}
