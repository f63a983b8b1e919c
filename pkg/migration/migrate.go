// Package migration applies embedded *.up.sql files in version order and records
// applied versions in schema_migrations. Works for any sqlx-supported driver.
package migration

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Run 按顺序应用未执行的迁移文件，文件名格式: 000001_description.up.sql
// 返回本次应用的迁移数量。
func Run(ctx context.Context, db *sqlx.DB, fsys fs.FS, dir string, logger *zap.Logger) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to read applied versions: %w", err)
	}

	files, err := collect(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to collect migrations: %w", err)
	}

	count := 0
	for _, m := range files {
		if applied[m.version] {
			continue
		}
		if err := apply(ctx, db, fsys, m); err != nil {
			return count, fmt.Errorf("migration %06d failed: %w", m.version, err)
		}
		logger.Info("Applied migration",
			zap.Int("version", m.version),
			zap.String("name", m.name),
		)
		count++
	}

	return count, nil
}

type file struct {
	version int
	name    string
	path    string
}

func ensureMigrationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, db *sqlx.DB) (map[int]bool, error) {
	var versions []int
	if err := db.SelectContext(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// collect 收集 up.sql 并按版本排序
func collect(fsys fs.FS, dir string) ([]file, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []file
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}

		prefix, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}

		files = append(files, file{
			version: version,
			name:    strings.TrimSuffix(rest, ".up.sql"),
			path:    path.Join(dir, entry.Name()),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].version < files[j].version
	})
	return files, nil
}

// apply 在事务中执行一个迁移
func apply(ctx context.Context, db *sqlx.DB, fsys fs.FS, m file) error {
	content, err := fs.ReadFile(fsys, m.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", m.path, err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute sql: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version) VALUES (?)"), m.version); err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}

	return tx.Commit()
}
