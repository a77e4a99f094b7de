// Package recommend implements the item-based collaborative-filtering
// recommender (C6): on every request it rebuilds a dense user-course
// interaction matrix from the behavior log, blends behavior cosine
// similarity with course-attribute similarity, scores candidate
// courses from the caller's interaction history, and falls back to
// popularity on cold start, thin catalogues, or any internal failure.
//
// Grounded on spec.md §4.6's algorithm; there is no Go recommender
// code in the example pack to imitate structurally, so the package is
// built in the teacher's general style (small composable files, one
// concern per file, table-driven tests) with the similarity math
// expressed as plain slices-of-slices rather than reaching for a
// numerical library the corpus never imports.
package recommend

import "sort"

// matrix is a dense |users|×|courses| table of summed action_value,
// with stable index orderings recovered via userIndex/courseIndex —
// §4.6 step 2's "stable index orderings" requirement.
type matrix struct {
	rows        [][]float64 // rows[u][c]
	userIndex   map[string]int
	courseIndex map[string]int
	courseIDs   []string // index → id, in first-seen order
}

// buildMatrix aggregates Σ action_value grouped by (user, course)
// across every event, in first-seen insertion order so repeated runs
// over the same log produce the same index assignment.
func buildMatrix(events []interactionEvent) *matrix {
	m := &matrix{
		userIndex:   make(map[string]int),
		courseIndex: make(map[string]int),
	}
	sums := make(map[[2]int]float64)

	for _, e := range events {
		ui, ok := m.userIndex[e.UserID]
		if !ok {
			ui = len(m.userIndex)
			m.userIndex[e.UserID] = ui
		}
		ci, ok := m.courseIndex[e.CourseID]
		if !ok {
			ci = len(m.courseIndex)
			m.courseIndex[e.CourseID] = ci
			m.courseIDs = append(m.courseIDs, e.CourseID)
		}
		sums[[2]int{ui, ci}] += e.ActionValue
	}

	m.rows = make([][]float64, len(m.userIndex))
	nCourses := len(m.courseIndex)
	for i := range m.rows {
		m.rows[i] = make([]float64, nCourses)
	}
	for key, v := range sums {
		m.rows[key[0]][key[1]] = v
	}
	return m
}

// interactionEvent is the minimal projection of a behavior.Event the
// matrix builder needs, decoupling this package from the behavior
// package's wire shape.
type interactionEvent struct {
	UserID      string
	CourseID    string
	ActionValue float64
}

// interactedScores aggregates Σ action_value per course for one user,
// used both for cold-start detection (§4.6 step 1) and as the
// user_score(i) term in the hybrid scoring formula (step 5).
func interactedScores(events []interactionEvent, userID string) map[string]float64 {
	scores := make(map[string]float64)
	for _, e := range events {
		if e.UserID == userID {
			scores[e.CourseID] += e.ActionValue
		}
	}
	return scores
}

// popularityRank aggregates Σ action_value by course across the whole
// log, sorted descending with ties broken by course id ascending
// (§4.6's tie-breaking rule), used by the popularity fallback.
func popularityRank(events []interactionEvent) []string {
	totals := make(map[string]float64)
	for _, e := range events {
		totals[e.CourseID] += e.ActionValue
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if totals[ids[i]] != totals[ids[j]] {
			return totals[ids[i]] > totals[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}
