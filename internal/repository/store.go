package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kickspot/internal/model"
)

// NotificationStore is the durable side of the fan-out. Every write completes
// before the caller may push the notification in real time.
type NotificationStore interface {
	// Create assigns ID and CreatedAt and returns the stored row.
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
	Get(ctx context.Context, id int64) (*model.Notification, error)
	// ListFor returns a newest-first page with the unread count, both read
	// against the same id watermark. Unknown recipients get an empty page.
	ListFor(ctx context.Context, r model.Recipient, p model.Page) (*model.PageResult, error)
	// MarkRead is idempotent; it fails only when the row does not exist.
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, r model.Recipient) (int64, error)
	Delete(ctx context.Context, id int64) error
	// UnreadCount is computed from the rows at call time, never cached.
	UnreadCount(ctx context.Context, r model.Recipient) (int, error)
	DeleteForOrder(ctx context.Context, orderID int64) (int64, error)
	DeleteForProduct(ctx context.Context, productID int64) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

const notificationColumns = `id, user_id, admin_id, type, title, message, priority,
       is_read, metadata, order_id, product_id, created_at`

// notificationRow is the shared scan target for pgx and sqlx.
type notificationRow struct {
	ID        int64     `db:"id"`
	UserID    *int64    `db:"user_id"`
	AdminID   *int64    `db:"admin_id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Priority  string    `db:"priority"`
	IsRead    bool      `db:"is_read"`
	Metadata  []byte    `db:"metadata"`
	OrderID   *int64    `db:"order_id"`
	ProductID *int64    `db:"product_id"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) toModel() (*model.Notification, error) {
	n := &model.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		AdminID:   r.AdminID,
		Type:      model.Type(r.Type),
		Title:     r.Title,
		Message:   r.Message,
		Priority:  model.Priority(r.Priority),
		IsRead:    r.IsRead,
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &n.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of notification %d: %w", r.ID, err)
		}
	}
	return n, nil
}

func toModels(rows []notificationRow) ([]*model.Notification, error) {
	out := make([]*model.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// snapshotRow is the per-recipient aggregate a page is read against.
type snapshotRow struct {
	LatestID int64 `db:"latest_id"`
	Total    int   `db:"total"`
	Unread   int   `db:"unread"`
}

func (s snapshotRow) result(items []*model.Notification, p model.Page) *model.PageResult {
	total := s.Total
	if p.UnreadOnly {
		total = s.Unread
	}
	return &model.PageResult{
		Items:    items,
		Total:    total,
		Unread:   s.Unread,
		LatestID: s.LatestID,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
}

// recipientColumn is whitelisted; it is interpolated into SQL.
func recipientColumn(r model.Recipient) (string, error) {
	switch r.Role {
	case model.RoleUser:
		return "user_id", nil
	case model.RoleAdmin:
		return "admin_id", nil
	default:
		return "", &model.ValidationError{Field: "recipient", Reason: fmt.Sprintf("unknown role %q", r.Role)}
	}
}

func persistErr(op string, err error) error {
	return &model.PersistenceError{Op: op, Err: err}
}
