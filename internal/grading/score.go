package grading

// Outcome is the result of grading a whole attempt.
type Outcome struct {
	PointsEarned   float64 `json:"points_earned"`
	PointsPossible float64 `json:"points_possible"`
	ScorePercent   float64 `json:"score_percent"`
	Passed         bool    `json:"passed"`
}

// Score grades every question in the frozen attempt order against the
// submitted answers. Questions without a response earn zero but keep their
// full weight in PointsPossible, essays included. The pass boundary is
// inclusive: scoring exactly passingScore passes.
func (g *Grader) Score(questions []Q, answers map[string][]string, passingScore float64) Outcome {
	var earned, possible float64
	for _, q := range questions {
		possible += q.Points
		res := g.Grade(q, answers[q.ID])
		earned += res.AutoPoints
	}
	pct := 0.0
	if possible > 0 {
		pct = earned / possible * 100
	}
	return Outcome{
		PointsEarned:   earned,
		PointsPossible: possible,
		ScorePercent:   pct,
		Passed:         pct >= passingScore,
	}
}
