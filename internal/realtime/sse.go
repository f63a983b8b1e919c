package realtime

import "github.com/google/uuid"

// SSEConn is the server-sent-events fallback. The HTTP handler drains Frames
// and writes them; the connection itself holds only the queue.
type SSEConn struct {
	id  string
	out *outbox
}

func NewSSEConn(sendBuffer int) *SSEConn {
	return &SSEConn{id: uuid.NewString(), out: newOutbox(sendBuffer)}
}

func (c *SSEConn) ID() string        { return c.id }
func (c *SSEConn) Transport() string { return TransportSSE }

func (c *SSEConn) Send(f Frame) error {
	return c.out.enqueue(f)
}

func (c *SSEConn) Close() error {
	c.out.shutdown()
	return nil
}

func (c *SSEConn) Frames() <-chan Frame   { return c.out.frames }
func (c *SSEConn) Done() <-chan struct{} { return c.out.done }
