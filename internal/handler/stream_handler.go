package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kickspot/internal/config"
	"kickspot/internal/model"
	"kickspot/internal/realtime"
)

// StreamHandler upgrades authenticated requests to a live notification stream.
// The channel always comes from the verified token; clients never name it.
type StreamHandler struct {
	registry     *realtime.Registry
	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
	logger       *zap.Logger
}

func NewStreamHandler(registry *realtime.Registry, cfg config.RealtimeConfig, logger *zap.Logger) *StreamHandler {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return &StreamHandler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		sendBuffer:   cfg.SendBuffer,
		pingInterval: cfg.PingInterval(),
		logger:       logger,
	}
}

// WebSocket GET /api/v1/notifications/ws
func (h *StreamHandler) WebSocket(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader has already written the error response
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	conn := realtime.NewWSConn(ws, h.sendBuffer, h.pingInterval, h.logger)
	if !h.join(conn, r.Channel()) {
		return
	}
	defer h.registry.Leave(conn.ID())

	conn.Run(c.Request.Context())
}

// Stream GET /api/v1/notifications/stream (server-sent events)
func (h *StreamHandler) Stream(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}

	conn := realtime.NewSSEConn(h.sendBuffer)
	if !h.join(conn, r.Channel()) {
		return
	}
	defer func() {
		h.registry.Leave(conn.ID())
		conn.Close()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.pingInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-conn.Done():
			return false
		case f := <-conn.Frames():
			c.SSEvent(f.Event, f.Data)
			return true
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		}
	})
}

// join queues the joined frame before registering, so it is always the first
// frame the client sees.
func (h *StreamHandler) join(conn realtime.Conn, ch model.Channel) bool {
	if err := conn.Send(realtime.JoinedFrame(ch)); err != nil {
		conn.Close()
		return false
	}
	if err := h.registry.Join(conn, ch); err != nil {
		h.logger.Warn("Failed to join channel",
			zap.String("conn_id", conn.ID()),
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
		conn.Close()
		return false
	}
	return true
}
