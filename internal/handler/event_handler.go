package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kickspot/pkg/mq"
	"kickspot/pkg/util"
)

// EventHandler lets an admin inject a storefront domain event over HTTP. It
// runs the same handlers as the RabbitMQ consumer.
type EventHandler struct {
	router *mq.Router
	logger *zap.Logger
}

func NewEventHandler(router *mq.Router, logger *zap.Logger) *EventHandler {
	return &EventHandler{router: router, logger: logger}
}

type injectRequest struct {
	RoutingKey string          `json:"routing_key" binding:"required"`
	Payload    json.RawMessage `json:"payload" binding:"required"`
}

// Inject POST /api/v1/internal/events
func (h *EventHandler) Inject(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.router.Has(req.RoutingKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown routing_key: " + req.RoutingKey})
		return
	}

	err := h.router.Handle(c.Request.Context(), mq.Message{RoutingKey: req.RoutingKey, Body: req.Payload})
	if err != nil {
		// malformed or rejected payloads are the caller's fault
		if _, kind := util.IsRetryableError(err); kind == "domain_rejected" || kind == "json_decode_error" {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "handled", "routing_key": req.RoutingKey})
}
