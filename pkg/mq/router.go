package mq

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Router dispatches messages to handlers by routing key.
type Router struct {
	routes map[string]MessageHandler
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		routes: make(map[string]MessageHandler),
		logger: logger,
	}
}

func (r *Router) Register(routingKey string, h MessageHandler) {
	r.routes[routingKey] = h
}

// Has reports whether a handler is registered for routingKey.
func (r *Router) Has(routingKey string) bool {
	_, ok := r.routes[routingKey]
	return ok
}

// RoutingKeys returns every registered key, for queue binding.
func (r *Router) RoutingKeys() []string {
	keys := make([]string, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Handle is a MessageHandler. Unknown routing keys are acked and logged.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	h, ok := r.routes[msg.RoutingKey]
	if !ok {
		r.logger.Warn("No handler for routing key", zap.String("routing_key", msg.RoutingKey))
		return nil
	}
	return h(ctx, msg)
}
