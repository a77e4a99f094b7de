package recommend

import "math"

// behaviorSimilarity computes S_behavior = cosine(M^T, M^T): the
// course-course cosine similarity of column vectors of m (§4.6 step
// 4). Result is indexed [courseIndex][courseIndex]; the diagonal is 1,
// up to floating-point rounding, for any course with at least one
// nonzero interaction.
func behaviorSimilarity(m *matrix) [][]float64 {
	n := len(m.courseIndex)
	columns := make([][]float64, n)
	for c := 0; c < n; c++ {
		col := make([]float64, len(m.rows))
		for u := range m.rows {
			col[u] = m.rows[u][c]
		}
		columns[c] = col
	}

	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := cosine(columns[i], columns[j])
			sim[i][j] = v
			sim[j][i] = v
		}
	}
	return sim
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// attributeInput is the subset of course.Course fields the attribute
// similarity formula reads, decoupling this package from the course
// package's full entity.
type attributeInput struct {
	Department      string
	DifficultyLevel int
	ApplicableTitle string
}

// attributeSimilarity computes S_attr for the courses in
// m.courseIDs order, following §4.6 step 4's formula exactly:
// +0.5 matching department, + max(0, 0.3 − 0.1·|Δdifficulty|),
// +0.2 if applicable_title is present on both and equal, clamped to
// [0,1], diagonal exactly 1.
func attributeSimilarity(courseIDs []string, attrs map[string]attributeInput) [][]float64 {
	n := len(courseIDs)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		sim[i][i] = 1
		ai, okI := attrs[courseIDs[i]]
		for j := i + 1; j < n; j++ {
			aj, okJ := attrs[courseIDs[j]]
			var score float64
			if okI && okJ {
				score = pairAttributeScore(ai, aj)
			}
			sim[i][j] = score
			sim[j][i] = score
		}
	}
	return sim
}

func pairAttributeScore(a, b attributeInput) float64 {
	var score float64
	if a.Department != "" && a.Department == b.Department {
		score += 0.5
	}
	delta := math.Abs(float64(a.DifficultyLevel - b.DifficultyLevel))
	score += math.Max(0, 0.3-0.1*delta)
	if a.ApplicableTitle != "" && a.ApplicableTitle == b.ApplicableTitle {
		score += 0.2
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// hybridSimilarity blends S = 0.7·S_behavior + 0.3·S_attr (§4.6 step 5).
func hybridSimilarity(behaviorSim, attrSim [][]float64) [][]float64 {
	n := len(behaviorSim)
	s := make([][]float64, n)
	for i := 0; i < n; i++ {
		s[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			s[i][j] = 0.7*behaviorSim[i][j] + 0.3*attrSim[i][j]
		}
	}
	return s
}
