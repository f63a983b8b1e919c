package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	mqcontracts "kickspot/contracts/mq"
	"kickspot/internal/service"
	"kickspot/pkg/logger"
	"kickspot/pkg/metrics"
	"kickspot/pkg/mq"
)

// Deduper is satisfied by util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventID string) bool
	Release(ctx context.Context, handler, eventID string)
}

type eventPayload interface {
	Meta() mqcontracts.EventMeta
}

// StorefrontHandler routes storefront domain events to the notification hooks.
type StorefrontHandler struct {
	events *service.DomainEvents
	dedup  Deduper
	logger *zap.Logger
}

// NewStorefrontHandler builds the handler. dedup may be nil, which disables
// redelivery suppression.
func NewStorefrontHandler(events *service.DomainEvents, dedup Deduper, logger *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{events: events, dedup: dedup, logger: logger}
}

// Register binds every storefront routing key on r.
func (h *StorefrontHandler) Register(r *mq.Router) {
	r.Register(mqcontracts.RoutingKeyOrderPlaced, handle(h, mqcontracts.RoutingKeyOrderPlaced, h.events.OrderPlaced))
	r.Register(mqcontracts.RoutingKeyOrderStatusChanged, handle(h, mqcontracts.RoutingKeyOrderStatusChanged, h.events.OrderStatusChanged))
	r.Register(mqcontracts.RoutingKeyOrderPaymentFailed, handle(h, mqcontracts.RoutingKeyOrderPaymentFailed, h.events.PaymentFailed))
	r.Register(mqcontracts.RoutingKeyOrderDeleted, handle(h, mqcontracts.RoutingKeyOrderDeleted, h.events.OrderDeleted))
	r.Register(mqcontracts.RoutingKeyProductStockLow, handle(h, mqcontracts.RoutingKeyProductStockLow, h.events.StockLow))
	r.Register(mqcontracts.RoutingKeyProductDeleted, handle(h, mqcontracts.RoutingKeyProductDeleted, h.events.ProductDeleted))
	r.Register(mqcontracts.RoutingKeyUserRegistered, handle(h, mqcontracts.RoutingKeyUserRegistered, h.events.UserRegistered))
}

// handle decodes the payload, skips redeliveries by event_id and releases the
// dedup key when the hook fails so the next delivery is processed.
func handle[T eventPayload](h *StorefrontHandler, routingKey string, fn func(context.Context, T) error) mq.MessageHandler {
	return func(ctx context.Context, msg mq.Message) error {
		log := logger.WithTrace(ctx, h.logger).With(zap.String("routing_key", routingKey))

		var p T
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			log.Error("Failed to unmarshal event payload", zap.Error(err))
			metrics.IncrementDomainEvent(routingKey, "failed")
			return err
		}

		eventID := p.Meta().EventID
		dedup := h.dedup != nil && eventID != ""
		if dedup && !h.dedup.AcquireOnce(ctx, routingKey, eventID) {
			metrics.IncrementDomainEvent(routingKey, "duplicate")
			return nil
		}

		if err := fn(ctx, p); err != nil {
			if dedup {
				h.dedup.Release(ctx, routingKey, eventID)
			}
			log.Error("Failed to handle event", zap.String("event_id", eventID), zap.Error(err))
			metrics.IncrementDomainEvent(routingKey, "failed")
			return err
		}

		log.Info("Event handled", zap.String("event_id", eventID))
		metrics.IncrementDomainEvent(routingKey, "success")
		return nil
	}
}
