// Package course defines the read-only course catalogue entity and
// its repository boundary. Persistence is external (SPEC_FULL.md
// Non-goals); this package only describes the shape the rest of the
// core depends on to read it.
package course

import "time"

// Course is the read side of the catalogue entity (§3 "Course
// attributes"), as referenced by the list cache (C2) and the
// recommender's attribute similarity and cold-start fallback (C6).
type Course struct {
	ID                string
	Title             string
	MedicalDepartment string
	DifficultyLevel   int // 1..4
	ApplicableTitle   string
	Status            int // 1 = active
	SaleStatus        int // 1 = on sale
	CreatedTime       time.Time
}

// Active reports whether the course is recommendable (§3: "only
// courses with status=1 ∧ sale_status=1 are recommendable").
func (c Course) Active() bool {
	return c.Status == 1 && c.SaleStatus == 1
}

// Repository is the opaque external course store. Its persistence
// mechanism (SQL, document store, etc.) is outside this core's scope;
// callers inject a concrete implementation.
type Repository interface {
	Get(id string) (Course, bool, error)
	// All returns the full catalogue, used by C6 to build the
	// course-course attribute similarity matrix and the cold-start
	// "newest active courses" fallback.
	All() ([]Course, error)
}
