// Package notifyclient is the consumer side of the notification stream: a REST
// client, a socket subscription, and the local Inbox that merges both.
package notifyclient

import (
	"sort"
	"sync"

	"kickspot/internal/model"
)

// Inbox holds a client's view of its notifications. It starts provisional:
// pushes received before the first Reconcile are buffered, because the server
// snapshot is the only trustworthy source for what already exists.
type Inbox struct {
	mu          sync.RWMutex
	items       map[int64]*model.Notification
	unread      int
	provisional bool
	pending     []*model.Notification
	onChange    func()
}

func NewInbox() *Inbox {
	return &Inbox{
		items:       make(map[int64]*model.Notification),
		provisional: true,
	}
}

// OnChange registers a callback run after every state change, outside the lock.
func (b *Inbox) OnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Provisional reports whether the inbox has not been reconciled since the last
// (re)connect.
func (b *Inbox) Provisional() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.provisional
}

// Invalidate marks the state provisional again, e.g. after a reconnect.
func (b *Inbox) Invalidate() {
	b.mu.Lock()
	b.provisional = true
	b.pending = nil
	b.mu.Unlock()
}

// Push applies a real-time notification. It reports whether the notification
// was new; duplicates are ignored. While provisional, "new" means not already
// known or buffered.
func (b *Inbox) Push(n *model.Notification) bool {
	if n == nil {
		return false
	}

	b.mu.Lock()
	if b.provisional {
		added := !b.knownLocked(n.ID)
		if added {
			b.pending = append(b.pending, n)
		}
		b.mu.Unlock()
		return added
	}
	added := b.add(n, true)
	fn := b.onChange
	b.mu.Unlock()

	if added && fn != nil {
		fn()
	}
	return added
}

// Reconcile replaces local state with a server snapshot: the first page,
// newest first, the recipient's unread count, and the id watermark both were
// read at. Buffered pushes are replayed on top; only those above the
// watermark add to the unread count.
func (b *Inbox) Reconcile(firstPage []*model.Notification, unreadCount int, latestID int64) {
	b.mu.Lock()

	b.items = make(map[int64]*model.Notification, len(firstPage))
	watermark := latestID
	for _, n := range firstPage {
		b.items[n.ID] = n
		watermark = max(watermark, n.ID)
	}
	b.unread = unreadCount

	for _, n := range b.pending {
		// at or below the watermark the server count already includes it
		b.add(n, n.ID > watermark)
	}
	b.pending = nil
	b.provisional = false
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// knownLocked 调用方需持有锁
func (b *Inbox) knownLocked(id int64) bool {
	if _, ok := b.items[id]; ok {
		return true
	}
	for _, p := range b.pending {
		if p.ID == id {
			return true
		}
	}
	return false
}

// add 调用方需持有锁
func (b *Inbox) add(n *model.Notification, countUnread bool) bool {
	if _, ok := b.items[n.ID]; ok {
		return false
	}
	b.items[n.ID] = n
	if countUnread && !n.IsRead {
		b.unread++
	}
	return true
}

// Items returns the known notifications, newest first.
func (b *Inbox) Items() []*model.Notification {
	b.mu.RLock()
	out := make([]*model.Notification, 0, len(b.items))
	for _, n := range b.items {
		out = append(out, n)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (b *Inbox) UnreadCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.unread
}

// MarkRead mirrors a successful server-side mark. Unknown ids are ignored.
func (b *Inbox) MarkRead(id int64) {
	b.mu.Lock()
	if n, ok := b.items[id]; ok && !n.IsRead {
		cp := *n
		cp.IsRead = true
		b.items[id] = &cp
		b.unread = max(b.unread-1, 0)
	}
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (b *Inbox) MarkAllRead() {
	b.mu.Lock()
	for id, n := range b.items {
		if !n.IsRead {
			cp := *n
			cp.IsRead = true
			b.items[id] = &cp
		}
	}
	b.unread = 0
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Remove mirrors a server-side delete.
func (b *Inbox) Remove(id int64) {
	b.mu.Lock()
	if n, ok := b.items[id]; ok {
		delete(b.items, id)
		if !n.IsRead {
			b.unread = max(b.unread-1, 0)
		}
	}
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
}
