package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/pkg/circuitbreaker"
	"kickspot/pkg/logger"
	"kickspot/pkg/trace"
)

// DefaultRelayPrefix namespaces the pub/sub channels: kickspot:notify:user:42.
const DefaultRelayPrefix = "kickspot:notify:"

const (
	relayRetryMin = 500 * time.Millisecond
	relayRetryMax = 30 * time.Second
)

type relayMessage struct {
	Notification *model.Notification `json:"notification"`
	TraceID      string              `json:"trace_id,omitempty"`
}

// RedisRelay fans a publish out to every replica through Redis pub/sub. Each
// replica's Run loop hands received messages to its local Broker. When Redis is
// unavailable, the breaker is open, or this replica's own subscriber is not
// running, Publish delivers locally instead.
type RedisRelay struct {
	rdb        *redis.Client
	local      *Broker
	breaker    *circuitbreaker.CircuitBreaker
	prefix     string
	logger     *zap.Logger
	subscribed atomic.Bool
}

func NewRedisRelay(rdb *redis.Client, local *Broker, breaker *circuitbreaker.CircuitBreaker, prefix string, logger *zap.Logger) *RedisRelay {
	if prefix == "" {
		prefix = DefaultRelayPrefix
	}
	return &RedisRelay{rdb: rdb, local: local, breaker: breaker, prefix: prefix, logger: logger}
}

// Subscribed reports whether Run currently holds a live subscription.
func (r *RedisRelay) Subscribed() bool {
	return r.subscribed.Load()
}

func (r *RedisRelay) Publish(ctx context.Context, ch model.Channel, n *model.Notification) Result {
	// without our own subscriber a relayed push would never reach local sockets
	if !r.subscribed.Load() {
		return r.local.Publish(ctx, ch, n)
	}

	payload, err := json.Marshal(relayMessage{Notification: n, TraceID: trace.FromContext(ctx)})
	if err != nil {
		logger.WithTrace(ctx, r.logger).Error("Failed to encode relay message", zap.Error(err))
		return r.local.Publish(ctx, ch, n)
	}

	err = r.breaker.Execute(func() error {
		return r.rdb.Publish(ctx, r.prefix+string(ch), payload).Err()
	})
	if err != nil {
		logger.WithTrace(ctx, r.logger).Warn("Relay publish failed, delivering locally",
			zap.String("channel", string(ch)),
			zap.String("breaker", r.breaker.GetState().String()),
			zap.Error(err),
		)
		return r.local.Publish(ctx, ch, n)
	}
	return Result{Relayed: true}
}

// Run subscribes to every relay channel and delivers locally until ctx ends.
// A failed subscription is retried with exponential backoff; Publish falls back
// to local delivery in the meantime.
func (r *RedisRelay) Run(ctx context.Context) error {
	backoff := relayRetryMin
	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = relayRetryMin
		}
		r.logger.Warn("Relay subscriber down, retrying",
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, relayRetryMax)
	}
}

// subscribe 阻塞直到订阅结束；只有成功订阅后 err 才为 nil
func (r *RedisRelay) subscribe(ctx context.Context) error {
	sub := r.rdb.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	r.logger.Info("Relay subscriber started", zap.String("pattern", r.prefix+"*"))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, msg *redis.Message) {
	ch := model.Channel(strings.TrimPrefix(msg.Channel, r.prefix))
	if _, err := model.ParseChannel(string(ch)); err != nil {
		r.logger.Warn("Ignoring relay message on malformed channel", zap.String("channel", msg.Channel))
		return
	}

	var m relayMessage
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil || m.Notification == nil {
		r.logger.Warn("Ignoring malformed relay message", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}

	if m.TraceID != "" {
		ctx = trace.WithContext(ctx, m.TraceID)
	}
	r.local.Publish(ctx, ch, m.Notification)
}
