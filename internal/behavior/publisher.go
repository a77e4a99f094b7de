package behavior

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
	"medschool-core/internal/metrics"
)

// CourseLookup resolves the course attributes embedded as a snapshot
// in every published event — the publisher's only dependency on the
// opaque course store (§4.5: "validates that the referenced course
// exists").
type CourseLookup interface {
	Snapshot(ctx context.Context, courseID string) (CourseSnapshot, bool, error)
}

// RecordRequest is the publisher-facing request shape, built by the
// record-behavior HTTP handler from the authenticated caller plus the
// request body and transport metadata.
type RecordRequest struct {
	UserID      string
	CourseID    string
	Action      ActionType
	ActionValue *float64 // nil uses the canonical weight table
	Extra       map[string]any
	IP          string
	UserAgent   string
}

// eventPublisher is the narrow slice of *Queue the Publisher depends
// on, so tests can substitute a fake without a real broker connection.
type eventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher is the record(user_id, request) → bool contract (§4.5).
type Publisher struct {
	queue   eventPublisher
	courses CourseLookup
	log     zerolog.Logger
}

// NewPublisher builds a Publisher over an already-declared Queue.
func NewPublisher(queue *Queue, courses CourseLookup, log zerolog.Logger) *Publisher {
	return &Publisher{queue: queue, courses: courses, log: log.With().Str("component", "behavior.publisher").Logger()}
}

// Record validates the course reference, fills in defaults, and
// publishes one persistent event. It returns (false, nil) — not an
// error — when the referenced course does not exist, matching the
// spec's "rejects with false otherwise" contract; the handler turns
// that into its own response without surfacing an internal error.
func (p *Publisher) Record(ctx context.Context, req RecordRequest) (bool, error) {
	snapshot, exists, err := p.courses.Snapshot(ctx, req.CourseID)
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, err, "resolve course for behavior event")
	}
	if !exists {
		return false, nil
	}

	value := 0.0
	if req.ActionValue != nil {
		value = *req.ActionValue
	} else if w, ok := DefaultWeight(req.Action); ok {
		value = w
	}

	event := Event{
		UserID:         req.UserID,
		CourseID:       req.CourseID,
		ActionType:     req.Action,
		ActionValue:    value,
		CourseSnapshot: snapshot,
		Extra:          req.Extra,
		CreatedTime:    time.Now(),
		IP:             req.IP,
		UserAgent:      req.UserAgent,
	}

	if err := p.queue.Publish(ctx, event); err != nil {
		return false, errs.Wrap(errs.KindInternal, err, "publish behavior event")
	}
	metrics.BehaviorEventsPublished.Inc()
	return true, nil
}
