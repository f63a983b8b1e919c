package realtime

import (
	"context"

	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/pkg/logger"
	"kickspot/pkg/metrics"
)

// Result summarizes one publish. Relayed means delivery was handed to the
// relay and happens on every replica asynchronously.
type Result struct {
	Delivered int
	Failed    int
	Relayed   bool
}

// Miss reports that nobody was listening locally.
func (r Result) Miss() bool {
	return !r.Relayed && r.Delivered == 0 && r.Failed == 0
}

// Publisher pushes a stored notification to the members of a channel. It never
// fails the caller: the notification is already persisted.
type Publisher interface {
	Publish(ctx context.Context, ch model.Channel, n *model.Notification) Result
}

// Broker delivers to members registered in this process.
type Broker struct {
	registry *Registry
	logger   *zap.Logger
}

func NewBroker(registry *Registry, logger *zap.Logger) *Broker {
	return &Broker{registry: registry, logger: logger}
}

func (b *Broker) Publish(ctx context.Context, ch model.Channel, n *model.Notification) Result {
	conns := b.registry.Conns(ch)
	if len(conns) == 0 {
		metrics.AddPushResult(metrics.PushMiss, 1)
		return Result{}
	}

	frame := NotificationFrame(n)
	var res Result
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			res.Failed++
			b.drop(ctx, c, &TransportError{ConnID: c.ID(), Channel: ch, Err: err})
			continue
		}
		res.Delivered++
	}

	metrics.AddPushResult(metrics.PushDelivered, res.Delivered)
	metrics.AddPushResult(metrics.PushFailed, res.Failed)
	return res
}

// drop removes a member that failed; its siblings are unaffected.
func (b *Broker) drop(ctx context.Context, c Conn, terr *TransportError) {
	logger.WithTrace(ctx, b.logger).Warn("Dropping connection after failed push",
		zap.String("conn_id", terr.ConnID),
		zap.String("channel", string(terr.Channel)),
		zap.Error(terr.Err),
	)
	b.registry.Leave(c.ID())
	if err := c.Close(); err != nil {
		b.logger.Debug("Close after failed push", zap.String("conn_id", c.ID()), zap.Error(err))
	}
}
