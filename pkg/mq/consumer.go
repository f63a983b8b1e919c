package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"kickspot/pkg/metrics"
	"kickspot/pkg/trace"
	"kickspot/pkg/util"
)

// Message is a single delivery handed to a MessageHandler.
type Message struct {
	RoutingKey string
	Body       []byte
}

type MessageHandler func(ctx context.Context, msg Message) error

type Consumer struct {
	channel     *amqp091.Channel
	queue       amqp091.Queue
	routingKeys []string
	handler     MessageHandler
	conn        *amqp091.Connection
	logger      *zap.Logger
	tag         string
	stopOnce    sync.Once
}

// NewConsumer creates a consumer whose queue is bound to every given routing key.
func NewConsumer(url, queueName string, routingKeys []string, logger *zap.Logger) (*Consumer, error) {
	if len(routingKeys) == 0 {
		return nil, fmt.Errorf("at least one routing key is required")
	}

	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	closeAll := func() {
		ch.Close()
		conn.Close()
	}

	if err := DeclareExchange(ch); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := DeclareDLQExchange(ch); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare dlq exchange: %w", err)
	}
	if _, err := DeclareDLQQueue(ch, queueName); err != nil {
		closeAll()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		deadLetterArgs(),
	)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	logger.Info("Consumer initialized",
		zap.Strings("routing_keys", routingKeys),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
		zap.String("dlq", queueName+".dlq"),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		routingKeys: routingKeys,
		logger:      logger,
		tag:         "notification-service",
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// Stop cancels the consumer; StartConsuming returns once in-flight deliveries drain.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		if c.channel != nil {
			if err := c.channel.Cancel(c.tag, false); err != nil {
				c.logger.Warn("Failed to cancel consumer", zap.Error(err))
			}
		}
	})
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.handle(msg)
	}

	c.logger.Info("Consumer stopped", zap.String("queue", c.queue.Name))
	return nil
}

// handle 保证每条消息都会被 ack 或 nack
func (c *Consumer) handle(msg amqp091.Delivery) {
	start := time.Now()
	ctx := context.Background()
	if traceID, ok := msg.Headers[TraceHeader].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	} else {
		ctx, _ = trace.Ensure(ctx)
	}

	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("trace_id", trace.FromContext(ctx)),
	)

	defer func() {
		metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			// panic 不重新入队，避免毒消息循环
			if err := msg.Nack(false, false); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	if err := c.handler(ctx, Message{RoutingKey: msg.RoutingKey, Body: msg.Body}); err != nil {
		retryable, errType := util.IsRetryableError(err)
		log.Error("Handler error",
			zap.Bool("requeue", retryable),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		if err := msg.Nack(false, retryable); err != nil {
			log.Error("Failed to nack message", zap.Error(err))
		}
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Error("Failed to ack message", zap.Error(err))
		return
	}
	log.Debug("Message processed successfully")
}
