package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxClientFrame = 4096
)

// WSConn adapts a gorilla websocket to Conn. One writer goroutine owns the socket.
type WSConn struct {
	id           string
	ws           *websocket.Conn
	out          *outbox
	pingInterval time.Duration
	logger       *zap.Logger
}

func NewWSConn(ws *websocket.Conn, sendBuffer int, pingInterval time.Duration, logger *zap.Logger) *WSConn {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	id := uuid.NewString()
	return &WSConn{
		id:           id,
		ws:           ws,
		out:          newOutbox(sendBuffer),
		pingInterval: pingInterval,
		logger:       logger.With(zap.String("conn_id", id)),
	}
}

func (c *WSConn) ID() string        { return c.id }
func (c *WSConn) Transport() string { return TransportWebSocket }

func (c *WSConn) Send(f Frame) error {
	return c.out.enqueue(f)
}

func (c *WSConn) Close() error {
	if !c.out.shutdown() {
		return nil
	}
	deadline := time.Now().Add(wsWriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

// Run pumps queued frames to the socket until the client disconnects, ctx ends
// or Close is called. Client frames are read and discarded.
func (c *WSConn) Run(ctx context.Context) {
	defer c.Close()

	go c.readLoop()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.out.done:
			return
		case f := <-c.out.frames:
			if err := c.write(f); err != nil {
				c.logger.Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *WSConn) write(f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// readLoop keeps the read side drained so control frames (pong, close) are processed.
func (c *WSConn) readLoop() {
	defer c.Close()

	c.ws.SetReadLimit(wsMaxClientFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("Websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(2 * c.pingInterval))
	}
}
