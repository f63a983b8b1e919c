// Package realtime keeps the live side of the fan-out: who is connected to which
// channel, and how a stored notification reaches them.
package realtime

import (
	"errors"
	"fmt"
	"sync"

	"kickspot/internal/model"
)

const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// 服务端帧类型
const (
	EventJoined       = "joined"
	EventNotification = "notification"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Frame is the envelope written to clients: {"event": ..., "data": ...}.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// JoinedData acknowledges the handshake.
type JoinedData struct {
	Channel model.Channel `json:"channel"`
}

func NotificationFrame(n *model.Notification) Frame {
	return Frame{Event: EventNotification, Data: n}
}

func JoinedFrame(ch model.Channel) Frame {
	return Frame{Event: EventJoined, Data: JoinedData{Channel: ch}}
}

// Conn is one live client connection. Send must not block.
type Conn interface {
	ID() string
	Transport() string
	Send(f Frame) error
	Close() error
}

// TransportError reports a member that could not take a frame.
type TransportError struct {
	ConnID  string
	Channel model.Channel
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send to %s on %s: %v", e.ConnID, e.Channel, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// outbox is the per-connection send queue shared by the transports. The frames
// channel is never closed; writers stop on done.
type outbox struct {
	frames chan Frame
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func newOutbox(size int) *outbox {
	if size <= 0 {
		size = 32
	}
	return &outbox{
		frames: make(chan Frame, size),
		done:   make(chan struct{}),
	}
}

func (o *outbox) enqueue(f Frame) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrConnClosed
	}
	select {
	case o.frames <- f:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// shutdown reports true for the first caller only.
func (o *outbox) shutdown() bool {
	first := false
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.done)
		o.mu.Unlock()
		first = true
	})
	return first
}
