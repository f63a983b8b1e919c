package mq

import (
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "events.dlx"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares <queue>.dlq and binds it to every routing key,
// so a rejected delivery keeps its original routing key for inspection.
func DeclareDLQQueue(ch *amqp091.Channel, queueName string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		queueName+".dlq",
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "#", DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}
	return q, nil
}

// deadLetterArgs routes nack(requeue=false) deliveries to the dead letter exchange.
func deadLetterArgs() amqp091.Table {
	return amqp091.Table{"x-dead-letter-exchange": DLQExchangeName}
}
