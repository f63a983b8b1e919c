package realtime

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/pkg/metrics"
)

var ErrChannelMismatch = errors.New("connection already joined another channel")

// Registry maps channels to their live connections. A connection belongs to at
// most one channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[model.Channel]map[string]Conn
	byConn   map[string]model.Channel
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		channels: make(map[model.Channel]map[string]Conn),
		byConn:   make(map[string]model.Channel),
		logger:   logger,
	}
}

// Join adds conn to ch. Joining the same channel twice is a no-op.
func (r *Registry) Join(conn Conn, ch model.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byConn[conn.ID()]; ok {
		if current != ch {
			return ErrChannelMismatch
		}
		return nil
	}

	members, ok := r.channels[ch]
	if !ok {
		members = make(map[string]Conn)
		r.channels[ch] = members
	}
	members[conn.ID()] = conn
	r.byConn[conn.ID()] = ch
	metrics.ConnectionOpened(conn.Transport())

	r.logger.Debug("Connection joined",
		zap.String("conn_id", conn.ID()),
		zap.String("channel", string(ch)),
		zap.String("transport", conn.Transport()),
	)
	return nil
}

// Leave removes the connection; unknown ids are ignored. Reports whether anything was removed.
func (r *Registry) Leave(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byConn[connID]
	if !ok {
		return false
	}
	delete(r.byConn, connID)

	members := r.channels[ch]
	conn := members[connID]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.channels, ch)
	}
	if conn != nil {
		metrics.ConnectionClosed(conn.Transport())
	}

	r.logger.Debug("Connection left",
		zap.String("conn_id", connID),
		zap.String("channel", string(ch)),
	)
	return true
}

// ChannelOf returns the channel a connection joined.
func (r *Registry) ChannelOf(connID string) (model.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byConn[connID]
	return ch, ok
}

// MembersOf returns the sorted connection ids in ch.
func (r *Registry) MembersOf(ch model.Channel) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.channels[ch]))
	for id := range r.channels[ch] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Conns snapshots the members of ch, ordered by id.
func (r *Registry) Conns(ch model.Channel) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.channels[ch]))
	for _, c := range r.channels[ch] {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })
	return conns
}

// Count is the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Channels is the number of non-empty channels.
func (r *Registry) Channels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Snapshot returns every registered connection.
func (r *Registry) Snapshot() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.byConn))
	for _, members := range r.channels {
		for _, c := range members {
			conns = append(conns, c)
		}
	}
	return conns
}
