package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/behavior"
	"medschool-core/internal/course"
)

type fakeSink struct {
	events []behavior.Event
}

func (f *fakeSink) Append(context.Context, behavior.Event) error { return nil }
func (f *fakeSink) All(context.Context) ([]behavior.Event, error) { return f.events, nil }

type fakeRepo struct {
	courses map[string]course.Course
}

func (f *fakeRepo) Get(id string) (course.Course, bool, error) {
	c, ok := f.courses[id]
	return c, ok, nil
}
func (f *fakeRepo) All() ([]course.Course, error) {
	out := make([]course.Course, 0, len(f.courses))
	for _, c := range f.courses {
		out = append(out, c)
	}
	return out, nil
}

func activeCourse(id, dept string, difficulty int, created time.Time) course.Course {
	return course.Course{ID: id, Title: id, MedicalDepartment: dept, DifficultyLevel: difficulty, Status: 1, SaleStatus: 1, CreatedTime: created}
}

func TestRecommendColdStartReturnsPopularity(t *testing.T) {
	base := time.Now()
	repo := &fakeRepo{courses: map[string]course.Course{
		"c1": activeCourse("c1", "cardiology", 1, base),
		"c2": activeCourse("c2", "cardiology", 1, base.Add(-time.Hour)),
		"c3": activeCourse("c3", "neurology", 2, base.Add(-2*time.Hour)),
	}}
	sink := &fakeSink{events: []behavior.Event{
		{UserID: "other", CourseID: "c2", ActionValue: 5},
		{UserID: "other", CourseID: "c1", ActionValue: 1},
	}}
	r := New(sink, repo, zerolog.Nop())

	recs, err := r.Recommend(context.Background(), "new-user-42", 5, true)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected cold-start recommendations")
	}
	for _, rec := range recs {
		if rec.Reason != ReasonPopular {
			t.Fatalf("expected all cold-start recs to be reason=popular, got %+v", rec)
		}
	}
	if recs[0].CourseID != "c2" {
		t.Fatalf("expected c2 (highest aggregate action_value) first, got %+v", recs)
	}
}

func TestRecommendFromHistoryPrefersSimilarCourses(t *testing.T) {
	base := time.Now()
	repo := &fakeRepo{courses: map[string]course.Course{
		"cardio-1": activeCourse("cardio-1", "cardiology", 2, base),
		"cardio-2": activeCourse("cardio-2", "cardiology", 2, base),
		"neuro-1":  activeCourse("neuro-1", "neurology", 2, base),
	}}
	sink := &fakeSink{events: []behavior.Event{
		{UserID: "u1", CourseID: "cardio-1", ActionValue: 5},
		{UserID: "u2", CourseID: "cardio-1", ActionValue: 3},
		{UserID: "u2", CourseID: "cardio-2", ActionValue: 3},
		{UserID: "u3", CourseID: "neuro-1", ActionValue: 4},
	}}
	r := New(sink, repo, zerolog.Nop())

	recs, err := r.Recommend(context.Background(), "u1", 2, true)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected at least one recommendation")
	}
	if recs[0].CourseID != "cardio-2" {
		t.Fatalf("expected cardio-2 to rank above neuro-1 by behavior+attribute similarity, got %+v", recs)
	}
	if recs[0].Reason != ReasonHistory {
		t.Fatalf("expected history-based reason, got %q", recs[0].Reason)
	}
}

func TestRecommendExcludesInteractedWhenRequested(t *testing.T) {
	base := time.Now()
	repo := &fakeRepo{courses: map[string]course.Course{
		"c1": activeCourse("c1", "d", 1, base),
		"c2": activeCourse("c2", "d", 1, base),
	}}
	sink := &fakeSink{events: []behavior.Event{
		{UserID: "u1", CourseID: "c1", ActionValue: 5},
		{UserID: "u1", CourseID: "c2", ActionValue: 5},
	}}
	r := New(sink, repo, zerolog.Nop())

	recs, err := r.Recommend(context.Background(), "u1", 5, true)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	for _, rec := range recs {
		if rec.CourseID == "c1" || rec.CourseID == "c2" {
			t.Fatalf("expected interacted courses to be excluded, got %+v", recs)
		}
	}
}

func TestPairAttributeScoreClampedAndWeighted(t *testing.T) {
	a := attributeInput{Department: "cardiology", DifficultyLevel: 1, ApplicableTitle: "physician"}
	b := attributeInput{Department: "cardiology", DifficultyLevel: 1, ApplicableTitle: "physician"}
	if got := pairAttributeScore(a, b); got != 1.0 {
		t.Fatalf("expected identical attributes to clamp to 1.0, got %v", got)
	}

	c := attributeInput{Department: "neurology", DifficultyLevel: 4}
	if got := pairAttributeScore(a, c); got != 0 {
		t.Fatalf("expected fully dissimilar attributes to score 0, got %v", got)
	}
}

func TestCosineSimilarityOfIdenticalVectorsIsOne(t *testing.T) {
	v := []float64{1, 2, 3}
	if got := cosine(v, v); got < 0.999999 || got > 1.000001 {
		t.Fatalf("expected cosine(v, v) ≈ 1, got %v", got)
	}
	if got := cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Fatalf("expected cosine with a zero vector to be 0, got %v", got)
	}
}
