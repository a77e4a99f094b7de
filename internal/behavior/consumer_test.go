package behavior

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// fakeAcknowledger records Ack/Nack calls instead of talking to a
// broker, so the consumer's manual-ack contract can be tested without
// a running RabbitMQ.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeSink struct {
	mu       sync.Mutex
	appended []Event
	failNext bool
}

func (f *fakeSink) Append(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errInsertFailed
	}
	f.appended = append(f.appended, event)
	return nil
}

func (f *fakeSink) All(context.Context) ([]Event, error) { return nil, nil }

var errInsertFailed = errTestSentinel("insert failed")

type errTestSentinel string

func (e errTestSentinel) Error() string { return string(e) }

func delivery(t *testing.T, ack *fakeAcknowledger, tag uint64, event Event) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func TestConsumerAcksOnSuccessfulInsert(t *testing.T) {
	sink := &fakeSink{}
	ack := &fakeAcknowledger{}
	c := NewConsumer(sink, zerolog.Nop())

	c.handle(context.Background(), delivery(t, ack, 1, Event{UserID: "u1", CourseID: "c1", ActionType: ActionView, ActionValue: 1}))

	if len(ack.acked) != 1 || ack.acked[0] != 1 {
		t.Fatalf("expected delivery 1 to be acked, got %v", ack.acked)
	}
	if len(sink.appended) != 1 {
		t.Fatalf("expected 1 appended event, got %d", len(sink.appended))
	}
	if sink.appended[0].InsertedTime.IsZero() {
		t.Fatal("expected InsertedTime to be set by the consumer")
	}
}

func TestConsumerNacksWithRequeueOnSinkFailure(t *testing.T) {
	sink := &fakeSink{failNext: true}
	ack := &fakeAcknowledger{}
	c := NewConsumer(sink, zerolog.Nop())

	c.handle(context.Background(), delivery(t, ack, 7, Event{UserID: "u1", CourseID: "c1"}))

	if len(ack.nacked) != 1 || ack.nacked[0] != 7 {
		t.Fatalf("expected delivery 7 to be nacked, got %v", ack.nacked)
	}
	if !ack.requeue[0] {
		t.Fatal("expected the nack to request redelivery")
	}
}

func TestConsumerAcksMalformedMessageRatherThanRedeliverForever(t *testing.T) {
	sink := &fakeSink{}
	ack := &fakeAcknowledger{}
	c := NewConsumer(sink, zerolog.Nop())

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("not json")})

	if len(ack.acked) != 1 {
		t.Fatalf("expected malformed message to be acked so it doesn't loop forever, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}
}

func TestConsumerRunDrainsUntilChannelCloses(t *testing.T) {
	sink := &fakeSink{}
	ack := &fakeAcknowledger{}
	c := NewConsumer(sink, zerolog.Nop())

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- delivery(t, ack, 1, Event{UserID: "a", CourseID: "b"})
	deliveries <- delivery(t, ack, 2, Event{UserID: "c", CourseID: "d"})
	close(deliveries)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), deliveries)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the delivery channel closed")
	}
	if len(sink.appended) != 2 {
		t.Fatalf("expected both deliveries processed, got %d", len(sink.appended))
	}
}
