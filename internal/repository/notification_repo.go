package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "kickspot/contracts/mq"
	"kickspot/internal/model"
	"kickspot/pkg/outbox"
	"kickspot/pkg/trace"
)

// PostgresStore keeps notifications in PostgreSQL. When an outbox repository is
// attached, Create also records a notification.created event in the same transaction.
type PostgresStore struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		outbox: outboxRepo,
		logger: logger,
	}
}

func (s *PostgresStore) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return nil, persistErr("create", fmt.Errorf("encoding metadata: %w", err))
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, persistErr("create", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO notifications (user_id, admin_id, type, title, message, priority, metadata, order_id, product_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	stored := *n
	stored.IsRead = false
	err = tx.QueryRow(ctx, query,
		n.UserID,
		n.AdminID,
		string(n.Type),
		n.Title,
		n.Message,
		string(n.Priority),
		string(meta),
		n.OrderID,
		n.ProductID,
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		s.logger.Error("Failed to insert notification", zap.Error(err))
		return nil, persistErr("create", err)
	}
	stored.CreatedAt = stored.CreatedAt.UTC()

	if s.outbox != nil {
		recipient, err := stored.Recipient()
		if err != nil {
			return nil, err
		}
		payload := mqcontracts.NotificationCreatedPayload{
			NotificationID: stored.ID,
			Channel:        string(recipient.Channel()),
			Type:           string(stored.Type),
			Title:          stored.Title,
			Message:        stored.Message,
			Priority:       string(stored.Priority),
			OrderID:        stored.OrderID,
			ProductID:      stored.ProductID,
			CreatedAt:      stored.CreatedAt,
			TraceID:        trace.FromContext(ctx),
		}
		if err := outbox.InsertEventInTx(ctx, tx, s.outbox, "notification", &stored.ID, mqcontracts.RoutingKeyNotificationCreated, payload); err != nil {
			s.logger.Error("Failed to insert notification.created to outbox", zap.Error(err))
			return nil, persistErr("create", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, persistErr("create", err)
	}

	s.logger.Debug("Notification inserted",
		zap.Int64("id", stored.ID),
		zap.String("type", string(stored.Type)),
	)
	return &stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Notification, error) {
	rows, err := s.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err != nil {
		return nil, persistErr("get", err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[notificationRow])
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) ListFor(ctx context.Context, r model.Recipient, p model.Page) (*model.PageResult, error) {
	col, err := recipientColumn(r)
	if err != nil {
		return nil, err
	}
	p = p.Normalize()

	var snap snapshotRow
	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(id), 0), COUNT(*), COUNT(*) FILTER (WHERE is_read = FALSE)
		FROM notifications
		WHERE `+col+` = $1`, r.ID).Scan(&snap.LatestID, &snap.Total, &snap.Unread)
	if err != nil {
		return nil, persistErr("list", err)
	}

	filter := col + ` = $1 AND id <= $2`
	if p.UnreadOnly {
		filter += ` AND is_read = FALSE`
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE `+filter+`
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, r.ID, snap.LatestID, p.PageSize, p.Offset())
	if err != nil {
		return nil, persistErr("list", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[notificationRow])
	if err != nil {
		return nil, persistErr("list", err)
	}
	items, err := toModels(collected)
	if err != nil {
		return nil, persistErr("list", err)
	}

	return snap.result(items, p), nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return persistErr("mark_read", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, r model.Recipient) (int64, error) {
	col, err := recipientColumn(r)
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE `+col+` = $1 AND is_read = FALSE`, r.ID)
	if err != nil {
		return 0, persistErr("mark_all_read", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return persistErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UnreadCount(ctx context.Context, r model.Recipient) (int, error) {
	col, err := recipientColumn(r)
	if err != nil {
		return 0, err
	}
	var count int
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+col+` = $1 AND is_read = FALSE`, r.ID).Scan(&count)
	if err != nil {
		return 0, persistErr("unread_count", err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteForOrder(ctx context.Context, orderID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, persistErr("delete_for_order", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteForProduct(ctx context.Context, productID int64) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE product_id = $1`, productID)
	if err != nil {
		return 0, persistErr("delete_for_product", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
