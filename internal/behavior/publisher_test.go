package behavior

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type fakeQueue struct {
	published []Event
}

func (f *fakeQueue) Publish(_ context.Context, event Event) error {
	f.published = append(f.published, event)
	return nil
}

type fakeCourses struct {
	snapshots map[string]CourseSnapshot
}

func (f *fakeCourses) Snapshot(_ context.Context, courseID string) (CourseSnapshot, bool, error) {
	s, ok := f.snapshots[courseID]
	return s, ok, nil
}

func TestPublisherRejectsUnknownCourse(t *testing.T) {
	q := &fakeQueue{}
	p := &Publisher{queue: q, courses: &fakeCourses{snapshots: map[string]CourseSnapshot{}}, log: zerolog.Nop()}

	ok, err := p.Record(context.Background(), RecordRequest{UserID: "u1", CourseID: "missing", Action: ActionView})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ok {
		t.Fatal("expected false for a nonexistent course")
	}
	if len(q.published) != 0 {
		t.Fatal("should not publish when the course does not exist")
	}
}

func TestPublisherFillsCanonicalWeight(t *testing.T) {
	q := &fakeQueue{}
	courses := &fakeCourses{snapshots: map[string]CourseSnapshot{"c9": {Title: "Go Basics"}}}
	p := &Publisher{queue: q, courses: courses, log: zerolog.Nop()}

	ok, err := p.Record(context.Background(), RecordRequest{UserID: "1", CourseID: "c9", Action: ActionFavorite})
	if err != nil || !ok {
		t.Fatalf("Record: ok=%v err=%v", ok, err)
	}
	if len(q.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(q.published))
	}
	got := q.published[0]
	if got.ActionValue != 3.0 {
		t.Fatalf("expected canonical favorite weight 3.0, got %v", got.ActionValue)
	}
	if got.CourseSnapshot.Title != "Go Basics" {
		t.Fatalf("expected course snapshot to be embedded, got %+v", got.CourseSnapshot)
	}
}

func TestPublisherHonorsExplicitActionValue(t *testing.T) {
	q := &fakeQueue{}
	courses := &fakeCourses{snapshots: map[string]CourseSnapshot{"c9": {}}}
	p := &Publisher{queue: q, courses: courses, log: zerolog.Nop()}

	explicit := 42.0
	_, err := p.Record(context.Background(), RecordRequest{UserID: "1", CourseID: "c9", Action: ActionRate, ActionValue: &explicit})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if q.published[0].ActionValue != 42.0 {
		t.Fatalf("expected explicit action_value to override the canonical weight, got %v", q.published[0].ActionValue)
	}
}

func TestDefaultWeightTable(t *testing.T) {
	cases := map[ActionType]float64{
		ActionView:       1.0,
		ActionFavorite:   3.0,
		ActionUnfavorite: -2.0,
		ActionPurchase:   5.0,
		ActionStudy:      4.0,
		ActionRate:       4.0,
	}
	for action, want := range cases {
		got, ok := DefaultWeight(action)
		if !ok || got != want {
			t.Fatalf("DefaultWeight(%q) = %v, %v; want %v, true", action, got, ok, want)
		}
	}
	if _, ok := DefaultWeight("unknown"); ok {
		t.Fatal("expected unknown action to have no canonical weight")
	}
}
