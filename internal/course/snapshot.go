package course

import (
	"context"

	"medschool-core/internal/behavior"
)

// SnapshotAdapter exposes a Repository as the narrow behavior.CourseLookup
// interface the behavior event publisher (C5) depends on, so the
// publisher never imports the full Repository surface.
type SnapshotAdapter struct {
	Repo Repository
}

func (a SnapshotAdapter) Snapshot(_ context.Context, courseID string) (behavior.CourseSnapshot, bool, error) {
	c, ok, err := a.Repo.Get(courseID)
	if err != nil || !ok {
		return behavior.CourseSnapshot{}, ok, err
	}
	return behavior.CourseSnapshot{
		Title:    c.Title,
		Category: c.MedicalDepartment,
	}, true, nil
}
