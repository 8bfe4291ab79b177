package grading

// Q is a minimal view of a question needed for grading. The quiz package
// converts its snapshot questions into this shape at submit time.
type Q struct {
	ID        string
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints  float64 // points awarded automatically
	MaxPoints   float64 // the question's max points
	NeedsManual bool    // true if instructor review is required
}

// Strategy grades a single question against the submitted answers.
// A missing response arrives as a nil slice and earns zero.
type Strategy interface {
	Grade(q Q, answers []string) Result
}

// Grader routes by question type to the correct Strategy.
type Grader struct {
	strategies map[string]Strategy
}

// NewGrader installs the built-in strategies for the four question types.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			"multiple_choice": choiceStrategy{},
			"true_false":      choiceStrategy{},
			"short_answer":    shortAnswerStrategy{},
			"essay":           essayStrategy{},
		},
	}
}

func (g *Grader) Grade(q Q, answers []string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true}
	}
	return s.Grade(q, answers)
}

// --- Strategies ---

// choiceStrategy covers multiple_choice and true_false: the submitted option
// set must equal the answer key exactly, order-insensitive. Full points or
// zero, no partial credit.
type choiceStrategy struct{}

func (choiceStrategy) Grade(q Q, answers []string) Result {
	res := Result{MaxPoints: q.Points}
	if len(answers) == 0 || len(q.AnswerKey) == 0 {
		return res
	}
	if setEqual(toSet(answers), toSet(q.AnswerKey)) {
		res.AutoPoints = q.Points
	}
	return res
}

// shortAnswerStrategy awards full points when the submitted text, trimmed and
// casefolded, equals any one string in the answer key.
type shortAnswerStrategy struct{}

func (shortAnswerStrategy) Grade(q Q, answers []string) Result {
	res := Result{MaxPoints: q.Points}
	if len(answers) == 0 {
		return res
	}
	got := normalize(answers[0])
	if got == "" {
		return res
	}
	for _, k := range q.AnswerKey {
		if normalize(k) == got {
			res.AutoPoints = q.Points
			return res
		}
	}
	return res
}

// essayStrategy never auto-scores; the question still counts toward the
// possible total and waits for a manual override.
type essayStrategy struct{}

func (essayStrategy) Grade(q Q, _ []string) Result {
	return Result{MaxPoints: q.Points, NeedsManual: true}
}

// helpers

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
