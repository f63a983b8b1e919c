package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"kickspot/internal/repository/migrations"
	"kickspot/pkg/migration"
)

// MigratePostgres applies the embedded Postgres migrations through the pool.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (int, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	return migration.Run(ctx, sqlx.NewDb(sqlDB, "pgx"), migrations.FS, migrations.PostgresDir, logger)
}
