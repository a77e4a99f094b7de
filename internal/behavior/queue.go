package behavior

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// QueueName is the durable queue the publisher and consumer share
// (§6 persisted layout): user_behavior_log_queue.
const QueueName = "user_behavior_log_queue"

// Queue wraps one amqp.Channel bound to the durable behavior queue.
// It owns reconnection-free channel lifecycle; the caller is
// responsible for the underlying amqp.Connection.
type Queue struct {
	ch        *amqp.Channel
	queueName string
	log       zerolog.Logger
}

// NewQueue declares the durable queue on ch and returns a Queue bound
// to it. Declaration is idempotent, matching the original
// _declare_queues call made once per connection.
func NewQueue(ch *amqp.Channel, queueName string, log zerolog.Logger) (*Queue, error) {
	if queueName == "" {
		queueName = QueueName
	}
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	return &Queue{ch: ch, queueName: queueName, log: log.With().Str("component", "behavior.queue").Logger()}, nil
}

// Publish sends one persistent JSON message to the queue via the
// default exchange, mirroring publish_message's routing_key=queue_name
// direct-to-queue delivery.
func (q *Queue) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal behavior event: %w", err)
	}
	return q.ch.Publish(
		"", // default exchange
		q.queueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume returns the raw delivery channel for the manual-ack consumer
// loop in consumer.go.
func (q *Queue) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return q.ch.Consume(
		q.queueName,
		consumerTag,
		false, // autoAck — manual ack per §4.5
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
}
