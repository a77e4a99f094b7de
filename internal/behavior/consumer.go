package behavior

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"medschool-core/internal/metrics"
)

// Consumer is the long-lived task bound to the behavior queue with
// manual acknowledgement (§4.5). For each delivery it appends one
// document to the sink, adding inserted_time; it acks only on a
// successful insert, leaving failed deliveries unacked so the broker
// redelivers them — the at-least-once guarantee the spec requires and
// C6 is defined to tolerate via monotone aggregation.
type Consumer struct {
	sink Sink
	log  zerolog.Logger
}

// NewConsumer builds a Consumer over sink.
func NewConsumer(sink Sink, log zerolog.Logger) *Consumer {
	return &Consumer{sink: sink, log: log.With().Str("component", "behavior.consumer").Logger()}
}

// Run drains deliveries until ctx is cancelled or the delivery channel
// closes (broker disconnect). It is meant to be run in its own
// goroutine for the lifetime of the process.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		// A malformed message can never be processed successfully;
		// ack it so it doesn't redeliver forever, but log loudly.
		c.log.Error().Err(err).Msg("dropping malformed behavior event")
		metrics.BehaviorEventsConsumed.WithLabelValues("malformed").Inc()
		_ = d.Ack(false)
		return
	}

	event.InsertedTime = time.Now()
	if err := c.sink.Append(ctx, event); err != nil {
		c.log.Error().Err(err).Str("user_id", event.UserID).Str("course_id", event.CourseID).
			Msg("failed to append behavior event, leaving unacked for redelivery")
		metrics.BehaviorEventsConsumed.WithLabelValues("nacked").Inc()
		_ = d.Nack(false, true)
		return
	}
	metrics.BehaviorEventsConsumed.WithLabelValues("acked").Inc()
	_ = d.Ack(false)
}
