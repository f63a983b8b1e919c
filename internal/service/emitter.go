package service

import (
	"context"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/internal/realtime"
	"kickspot/internal/repository"
	"kickspot/pkg/logger"
	"kickspot/pkg/metrics"
)

const emitterStripes = 64

// Emitter is the single entry point that turns a domain fact into a stored and
// pushed notification. Persist always happens before publish.
type Emitter struct {
	store     repository.NotificationStore
	publisher realtime.Publisher
	logger    *zap.Logger

	// stripes serialize create+publish per channel so delivery order matches id order.
	stripes [emitterStripes]sync.Mutex
}

func NewEmitter(store repository.NotificationStore, publisher realtime.Publisher, logger *zap.Logger) *Emitter {
	return &Emitter{store: store, publisher: publisher, logger: logger}
}

// Emit validates, persists and publishes one notification. A validation or
// persistence error means nothing was delivered. Delivery problems are never
// returned: the row is the source of truth and clients reconcile from it.
func (e *Emitter) Emit(ctx context.Context, d model.Draft) (*model.Notification, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	ch := d.Recipient.Channel()
	mu := e.stripe(ch)
	mu.Lock()
	defer mu.Unlock()

	log := logger.WithTrace(ctx, e.logger)

	stored, err := e.store.Create(ctx, d.Notification())
	if err != nil {
		log.Error("Failed to persist notification",
			zap.String("channel", string(ch)),
			zap.String("type", string(d.Type)),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.IncrementNotificationCreated(string(stored.Type))

	res := e.publisher.Publish(ctx, ch, stored)
	log.Debug("Notification emitted",
		zap.Int64("notification_id", stored.ID),
		zap.String("channel", string(ch)),
		zap.String("type", string(stored.Type)),
		zap.Int("delivered", res.Delivered),
		zap.Int("failed", res.Failed),
		zap.Bool("relayed", res.Relayed),
	)
	return stored, nil
}

func (e *Emitter) stripe(ch model.Channel) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ch))
	return &e.stripes[h.Sum32()%emitterStripes]
}
