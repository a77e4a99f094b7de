package recommend

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"medschool-core/internal/behavior"
	"medschool-core/internal/course"
)

const (
	behaviorWeight  = 0.7
	attributeWeight = 0.3
)

// Reason strings are fixed by §4.6; handlers and tests match on them
// verbatim.
const (
	ReasonHistory = "recommended from your learning history"
	ReasonPopular = "popular"
)

// Recommendation is one scored course in the response (§4.6 contract).
type Recommendation struct {
	CourseID string  `json:"course_id"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// Recommender implements recommend(user_id, N, excludeInteracted).
type Recommender struct {
	behaviorLog behavior.Sink
	courses     course.Repository
	log         zerolog.Logger
}

// New builds a Recommender over the behavior log sink and course
// catalogue.
func New(behaviorLog behavior.Sink, courses course.Repository, log zerolog.Logger) *Recommender {
	return &Recommender{behaviorLog: behaviorLog, courses: courses, log: log.With().Str("component", "recommend").Logger()}
}

// Recommend returns at most N recommendations for userID. Any failure
// in the history-based path degrades to popularity rather than
// propagating (§4.6 "Failure policy").
func (r *Recommender) Recommend(ctx context.Context, userID string, n int, excludeInteracted bool) ([]Recommendation, error) {
	recs, err := r.fromHistory(ctx, userID, n, excludeInteracted)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("history-based recommendation failed, degrading to popularity")
		recs = nil
	}
	if len(recs) >= n {
		return recs[:n], nil
	}
	return r.topUpWithPopularity(ctx, userID, n, recs, excludeInteracted)
}

func (r *Recommender) fromHistory(ctx context.Context, userID string, n int, excludeInteracted bool) ([]Recommendation, error) {
	events, err := r.allInteractionEvents(ctx)
	if err != nil {
		return nil, err
	}

	userScores := interactedScores(events, userID)
	if len(userScores) == 0 {
		return nil, nil // cold start — step 6 handles it
	}

	m := buildMatrix(events)
	if len(m.courseIndex) < 2 {
		return nil, nil // too thin a catalogue — popularity fallback
	}

	courses, err := r.activeCourseMap()
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]attributeInput, len(courses))
	for id, c := range courses {
		attrs[id] = attributeInput{Department: c.MedicalDepartment, DifficultyLevel: c.DifficultyLevel, ApplicableTitle: c.ApplicableTitle}
	}

	sBehavior := behaviorSimilarity(m)
	sAttr := attributeSimilarity(m.courseIDs, attrs)
	s := hybridSimilarity(sBehavior, sAttr)

	type scored struct {
		courseID string
		score    float64
	}
	var candidates []scored
	for candidateIdx, candidateID := range m.courseIDs {
		if excludeInteracted {
			if _, interacted := userScores[candidateID]; interacted {
				continue
			}
		}
		c, ok := courses[candidateID]
		if !ok || !c.Active() {
			continue
		}

		var score float64
		for interactedID, userScore := range userScores {
			interactedIdx, ok := m.courseIndex[interactedID]
			if !ok {
				continue
			}
			score += s[candidateIdx][interactedIdx] * userScore
		}
		if score > 0 {
			candidates = append(candidates, scored{courseID: candidateID, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].courseID < candidates[j].courseID
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	recs := make([]Recommendation, len(candidates))
	for i, c := range candidates {
		recs[i] = Recommendation{CourseID: c.courseID, Score: c.score, Reason: ReasonHistory}
	}
	return recs, nil
}

// topUpWithPopularity fills existing (possibly empty) recs up to n
// using the popularity ranking, then newest-active courses, per §4.6
// step 6.
func (r *Recommender) topUpWithPopularity(ctx context.Context, userID string, n int, existing []Recommendation, excludeInteracted bool) ([]Recommendation, error) {
	events, err := r.allInteractionEvents(ctx)
	if err != nil {
		events = nil // even popularity's source failed; fall through to newest-active
	}

	chosen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		chosen[rec.CourseID] = true
	}
	var userInteracted map[string]float64
	if excludeInteracted {
		userInteracted = interactedScores(events, userID)
	}

	courses, err2 := r.activeCourseMap()
	if err2 != nil {
		return existing, err2
	}

	result := append([]Recommendation{}, existing...)

	for _, id := range popularityRank(events) {
		if len(result) >= n {
			break
		}
		if chosen[id] {
			continue
		}
		if _, interacted := userInteracted[id]; interacted {
			continue
		}
		if !courses[id].Active() {
			continue
		}
		result = append(result, Recommendation{CourseID: id, Reason: ReasonPopular})
		chosen[id] = true
	}

	if len(result) < n {
		result = r.padWithNewest(courses, chosen, userInteracted, result, n)
	}
	return result, nil
}

// padWithNewest fills remaining slots with the newest active courses
// by created_time descending, the last-resort tier of §4.6 step 6.
func (r *Recommender) padWithNewest(courses map[string]course.Course, chosen map[string]bool, userInteracted map[string]float64, result []Recommendation, n int) []Recommendation {
	all := make([]course.Course, 0, len(courses))
	for _, c := range courses {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedTime.After(all[j].CreatedTime) })

	for _, c := range all {
		if len(result) >= n {
			break
		}
		if chosen[c.ID] {
			continue
		}
		if _, interacted := userInteracted[c.ID]; interacted {
			continue
		}
		result = append(result, Recommendation{CourseID: c.ID, Reason: ReasonPopular})
		chosen[c.ID] = true
	}
	return result
}

func (r *Recommender) allInteractionEvents(ctx context.Context) ([]interactionEvent, error) {
	events, err := r.behaviorLog.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]interactionEvent, len(events))
	for i, e := range events {
		out[i] = interactionEvent{UserID: e.UserID, CourseID: e.CourseID, ActionValue: e.ActionValue}
	}
	return out, nil
}

func (r *Recommender) activeCourseMap() (map[string]course.Course, error) {
	all, err := r.courses.All()
	if err != nil {
		return nil, err
	}
	m := make(map[string]course.Course, len(all))
	for _, c := range all {
		m[c.ID] = c
	}
	return m, nil
}
