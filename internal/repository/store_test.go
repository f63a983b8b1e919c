package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kickspot/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, store NotificationStore, r model.Recipient, title string) *model.Notification {
	t.Helper()
	d := model.Draft{
		Recipient: r,
		Type:      model.TypeOrderUpdate,
		Title:     title,
		Message:   "message for " + title,
		Metadata:  model.ViewOrder(42),
		OrderID:   model.Ptr(int64(42)),
	}
	require.NoError(t, d.Validate())
	n, err := store.Create(context.Background(), d.Notification())
	require.NoError(t, err)
	return n
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := seed(t, store, model.User(7), "Order confirmed")
	assert.Positive(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.IsRead)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Order confirmed", got.Title)
	assert.Equal(t, model.PriorityMedium, got.Priority)
	assert.Equal(t, model.ActionViewOrder, got.Metadata.Action())
	assert.True(t, got.BelongsTo(model.User(7)))
	require.NotNil(t, got.OrderID)
	assert.Equal(t, int64(42), *got.OrderID)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), 999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLiteStore_ListForNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := seed(t, store, model.User(1), "first")
	second := seed(t, store, model.User(1), "second")
	third := seed(t, store, model.User(1), "third")
	seed(t, store, model.Admin(1), "admin copy")

	res, err := store.ListFor(ctx, model.User(1), model.Page{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Items, 2)
	assert.Equal(t, third.ID, res.Items[0].ID)
	assert.Equal(t, second.ID, res.Items[1].ID)

	res, err = store.ListFor(ctx, model.User(1), model.Page{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, first.ID, res.Items[0].ID)
}

func TestSQLiteStore_ListForSnapshotsUnreadAndWatermark(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := model.User(1)

	read := seed(t, store, r, "read")
	require.NoError(t, store.MarkRead(ctx, read.ID))
	newest := seed(t, store, r, "unread")
	seed(t, store, model.User(2), "other recipient")

	res, err := store.ListFor(ctx, r, model.Page{})
	require.NoError(t, err)
	assert.Equal(t, newest.ID, res.LatestID)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Unread)

	res, err = store.ListFor(ctx, r, model.Page{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, newest.ID, res.Items[0].ID)

	res, err = store.ListFor(ctx, model.User(404), model.Page{})
	require.NoError(t, err)
	assert.Zero(t, res.LatestID)
	assert.Zero(t, res.Unread)
}

func TestSQLiteStore_ListForUnknownRecipient(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, model.User(1), "hello")

	res, err := store.ListFor(context.Background(), model.User(404), model.Page{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.Total)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, model.DefaultPageSize, res.PageSize)
}

func TestSQLiteStore_UnreadCountTracksReads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	r := model.Admin(3)

	a := seed(t, store, r, "a")
	seed(t, store, r, "b")
	seed(t, store, r, "c")

	count, err := store.UnreadCount(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, store.MarkRead(ctx, a.ID))
	// marking twice is a no-op
	require.NoError(t, store.MarkRead(ctx, a.ID))

	count, err = store.UnreadCount(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	unread, err := store.ListFor(ctx, r, model.Page{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2, unread.Total)
	for _, n := range unread.Items {
		assert.False(t, n.IsRead)
	}

	changed, err := store.MarkAllRead(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = store.MarkAllRead(ctx, r)
	require.NoError(t, err)
	assert.Zero(t, changed)

	count, err = store.UnreadCount(ctx, r)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_MarkAllReadScopedToRecipient(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed(t, store, model.User(1), "mine")
	seed(t, store, model.User(2), "theirs")

	_, err := store.MarkAllRead(ctx, model.User(1))
	require.NoError(t, err)

	count, err := store.UnreadCount(ctx, model.User(2))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_MissingRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.MarkRead(ctx, 12), model.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, 12), model.ErrNotFound)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n := seed(t, store, model.User(5), "bye")
	require.NoError(t, store.Delete(ctx, n.ID))

	_, err := store.Get(ctx, n.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLiteStore_CascadeDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed(t, store, model.User(1), "order 42 for buyer")
	seed(t, store, model.Admin(9), "order 42 for seller")

	stock := model.Draft{
		Recipient: model.Admin(9),
		Type:      model.TypeInventoryAlert,
		Title:     "Low stock",
		Message:   "Only 2 left",
		Metadata:  model.UpdateInventory(77, 2, 5),
		ProductID: model.Ptr(int64(77)),
	}
	require.NoError(t, stock.Validate())
	_, err := store.Create(ctx, stock.Notification())
	require.NoError(t, err)

	removed, err := store.DeleteForOrder(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = store.DeleteForProduct(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	count, err := store.UnreadCount(ctx, model.Admin(9))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_RejectsUnknownRole(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UnreadCount(context.Background(), model.Recipient{Role: "guest", ID: 1})
	assert.True(t, model.IsValidation(err))
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(ctx, path, zap.NewNop())
	require.NoError(t, err)
	n := seed(t, store, model.User(1), "persisted")
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)
}
