package outbox

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"kickspot/pkg/trace"
)

// Publisher 发布已编码的事件
type Publisher interface {
	PublishRaw(ctx context.Context, routingKey string, body []byte) error
}

// Store 是 Dispatcher 用到的 outbox 存储操作
type Store interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	repo       Store
	publisher  Publisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

// NewDispatcher 创建新的 Dispatcher
func NewDispatcher(repo Store, publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Start 阻塞运行直到 ctx 取消，应在 goroutine 中调用
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessPending(ctx)
		}
	}
}

// ProcessPending 处理一批待发送的事件，返回发布成功的数量
func (d *Dispatcher) ProcessPending(ctx context.Context) int {
	events, err := d.repo.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return 0
	}

	sent := 0
	for _, event := range events {
		pubCtx := withPayloadTrace(ctx, event.Payload)
		if err := d.publisher.PublishRaw(pubCtx, event.RoutingKey, event.Payload); err != nil {
			d.logger.Error("Failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("routing_key", event.RoutingKey),
				zap.Error(err),
			)
			if err := d.repo.MarkAsFailed(ctx, event.ID, d.maxRetries); err != nil {
				d.logger.Error("Failed to mark event as failed",
					zap.Int64("event_id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}

		if err := d.repo.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("event_id", event.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	if len(events) > 0 {
		d.logger.Debug("Processed pending outbox events",
			zap.Int("count", len(events)),
			zap.Int("sent", sent),
		)
	}
	return sent
}

// withPayloadTrace 从 payload 中提取 trace_id（如果存在）
func withPayloadTrace(ctx context.Context, payload json.RawMessage) context.Context {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.TraceID == "" {
		return ctx
	}
	return trace.WithContext(ctx, envelope.TraceID)
}
