package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"kickspot/internal/model"
	"kickspot/internal/repository/migrations"
	"kickspot/pkg/migration"
)

// SQLiteStore keeps notifications in a local SQLite file. It backs local
// development and the package tests; it has no outbox.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies migrations.
// Pass ":memory:" for a throwaway store.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := migration.Run(ctx, db, migrations.FS, migrations.SQLiteDir, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, persistErr("create", fmt.Errorf("encoding metadata: %w", err))
	}

	stored := *n
	stored.IsRead = false
	stored.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, admin_id, type, title, message, priority, is_read, metadata, order_id, product_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		n.UserID, n.AdminID, string(n.Type), n.Title, n.Message, string(n.Priority),
		string(meta), n.OrderID, n.ProductID, stored.CreatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to insert notification", zap.Error(err))
		return nil, persistErr("create", err)
	}
	stored.ID, err = res.LastInsertId()
	if err != nil {
		return nil, persistErr("create", err)
	}
	return &stored, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get", err)
	}
	n, err := row.toModel()
	if err != nil {
		return nil, persistErr("get", err)
	}
	return n, nil
}

func (s *SQLiteStore) ListFor(ctx context.Context, r model.Recipient, p model.Page) (*model.PageResult, error) {
	col, err := recipientColumn(r)
	if err != nil {
		return nil, err
	}
	p = p.Normalize()

	var snap snapshotRow
	err = s.db.GetContext(ctx, &snap, `
		SELECT COALESCE(MAX(id), 0) AS latest_id,
		       COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN is_read = 0 THEN 1 ELSE 0 END), 0) AS unread
		FROM notifications
		WHERE `+col+` = ?`, r.ID)
	if err != nil {
		return nil, persistErr("list", err)
	}

	filter := col + ` = ? AND id <= ?`
	if p.UnreadOnly {
		filter += ` AND is_read = 0`
	}

	var rows []notificationRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE `+filter+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`,
		r.ID, snap.LatestID, p.PageSize, p.Offset(),
	)
	if err != nil {
		return nil, persistErr("list", err)
	}
	items, err := toModels(rows)
	if err != nil {
		return nil, persistErr("list", err)
	}

	return snap.result(items, p), nil
}

func (s *SQLiteStore) MarkRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return persistErr("mark_read", err)
	}
	return requireRow(res, "mark_read")
}

func (s *SQLiteStore) MarkAllRead(ctx context.Context, r model.Recipient) (int64, error) {
	col, err := recipientColumn(r)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE `+col+` = ? AND is_read = 0`, r.ID)
	if err != nil {
		return 0, persistErr("mark_all_read", err)
	}
	return rowsAffected(res, "mark_all_read")
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id)
	if err != nil {
		return persistErr("delete", err)
	}
	return requireRow(res, "delete")
}

func (s *SQLiteStore) UnreadCount(ctx context.Context, r model.Recipient) (int, error) {
	col, err := recipientColumn(r)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE `+col+` = ? AND is_read = 0`, r.ID); err != nil {
		return 0, persistErr("unread_count", err)
	}
	return count, nil
}

func (s *SQLiteStore) DeleteForOrder(ctx context.Context, orderID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE order_id = ?`, orderID)
	if err != nil {
		return 0, persistErr("delete_for_order", err)
	}
	return rowsAffected(res, "delete_for_order")
}

func (s *SQLiteStore) DeleteForProduct(ctx context.Context, productID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE product_id = ?`, productID)
	if err != nil {
		return 0, persistErr("delete_for_product", err)
	}
	return rowsAffected(res, "delete_for_product")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func rowsAffected(res sql.Result, op string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr(op, err)
	}
	return n, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := rowsAffected(res, op)
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
