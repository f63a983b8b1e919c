package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the redis key for a handler + event id.
func DedupKey(handler, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, eventID)
}

// AcquireOnce tries to acquire a dedup lock for a given handler + event id.
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventID string) bool {
	key := DedupKey(handler, eventID)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release drops the dedup lock so a redelivery of a failed event is processed again.
func (d *Deduper) Release(ctx context.Context, handler, eventID string) {
	if err := d.rdb.Del(ctx, DedupKey(handler, eventID)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}
