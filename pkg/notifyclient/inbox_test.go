package notifyclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kickspot/internal/model"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func note(id int64, read bool) *model.Notification {
	return &model.Notification{
		ID:        id,
		UserID:    model.Ptr(int64(1)),
		Type:      model.TypeOrderUpdate,
		Title:     "t",
		Message:   "m",
		IsRead:    read,
		CreatedAt: base.Add(time.Duration(id) * time.Second),
	}
}

func ids(items []*model.Notification) []int64 {
	out := make([]int64, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestInbox_BuffersPushesUntilReconciled(t *testing.T) {
	inbox := NewInbox()
	assert.True(t, inbox.Provisional())

	inbox.Push(note(5, false))
	assert.Empty(t, inbox.Items())
	assert.Zero(t, inbox.UnreadCount())

	// snapshot already contains 5; 6 arrived after it
	inbox.Push(note(6, false))
	inbox.Reconcile([]*model.Notification{note(5, false), note(4, true), note(3, false)}, 2, 5)

	assert.False(t, inbox.Provisional())
	assert.Equal(t, []int64{6, 5, 4, 3}, ids(inbox.Items()))
	assert.Equal(t, 3, inbox.UnreadCount())
}

func TestInbox_WatermarkCoversPushMissingFromPage(t *testing.T) {
	inbox := NewInbox()
	// 2 was created after the page rows were read but before the count:
	// the server counted it, the page does not show it
	inbox.Push(note(2, false))
	inbox.Reconcile([]*model.Notification{note(1, false)}, 2, 2)

	assert.Equal(t, 2, inbox.UnreadCount())
	assert.Equal(t, []int64{2, 1}, ids(inbox.Items()))
}

func TestInbox_ProvisionalPushReportsDuplicates(t *testing.T) {
	inbox := NewInbox()
	assert.True(t, inbox.Push(note(1, false)))
	assert.False(t, inbox.Push(note(1, false)))

	inbox.Reconcile([]*model.Notification{note(1, false)}, 1, 1)
	inbox.Invalidate()
	// still known from the previous snapshot
	assert.False(t, inbox.Push(note(1, false)))
	assert.True(t, inbox.Push(note(2, false)))
}

func TestInbox_PushAfterReconcileDeduplicates(t *testing.T) {
	inbox := NewInbox()
	inbox.Reconcile([]*model.Notification{note(1, false)}, 1, 1)

	assert.True(t, inbox.Push(note(2, false)))
	assert.False(t, inbox.Push(note(2, false)))
	assert.False(t, inbox.Push(note(1, false)))
	assert.Equal(t, 2, inbox.UnreadCount())
}

func TestInbox_ReconcileOnEmptySnapshotCountsEveryPush(t *testing.T) {
	inbox := NewInbox()
	inbox.Push(note(1, false))
	inbox.Push(note(1, false))

	inbox.Reconcile(nil, 0, 0)
	assert.Equal(t, 1, inbox.UnreadCount())
	assert.Len(t, inbox.Items(), 1)
}

func TestInbox_InvalidateAfterReconnect(t *testing.T) {
	inbox := NewInbox()
	inbox.Reconcile([]*model.Notification{note(1, false)}, 1, 1)

	inbox.Invalidate()
	assert.True(t, inbox.Provisional())
	inbox.Push(note(2, false))
	assert.Equal(t, 1, inbox.UnreadCount())

	inbox.Reconcile([]*model.Notification{note(2, false), note(1, false)}, 2, 2)
	assert.Equal(t, 2, inbox.UnreadCount())
	assert.Equal(t, []int64{2, 1}, ids(inbox.Items()))
}

func TestInbox_MarkReadAndRemove(t *testing.T) {
	inbox := NewInbox()
	inbox.Reconcile([]*model.Notification{note(3, false), note(2, false), note(1, true)}, 2, 3)

	changes := 0
	inbox.OnChange(func() { changes++ })

	inbox.MarkRead(3)
	inbox.MarkRead(3)
	inbox.MarkRead(99)
	assert.Equal(t, 1, inbox.UnreadCount())

	inbox.Remove(2)
	assert.Zero(t, inbox.UnreadCount())
	assert.Equal(t, []int64{3, 1}, ids(inbox.Items()))

	inbox.Push(note(4, false))
	inbox.MarkAllRead()
	assert.Zero(t, inbox.UnreadCount())
	for _, n := range inbox.Items() {
		require.True(t, n.IsRead)
	}
	assert.Equal(t, 6, changes)
}
