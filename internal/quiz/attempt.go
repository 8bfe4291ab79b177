package quiz

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn/openlearn-lms/internal/grading"
)

// StartAttempt opens a new attempt for the user. The eligibility gate runs
// first; the resolved question order, option order, and time limit are
// computed once here and frozen into the attempt.
func StartAttempt(q Quiz, userID string, history []Attempt, now time.Time, rng *rand.Rand) (Attempt, error) {
	if err := q.Validate(); err != nil {
		return Attempt{}, err
	}
	if el := CanStart(q, history); !el.Allowed {
		return Attempt{}, &NotEligibleError{Reason: el.Reason}
	}
	return Attempt{
		ID:            uuid.NewString(),
		QuizID:        q.ID,
		UserID:        userID,
		AttemptNumber: len(history) + 1,
		Status:        StatusInProgress,
		StartedAt:     now,
		TimeLimitSec:  q.TimeLimitSec(),
		Questions:     resolveQuestions(q, rng),
		Responses:     map[string]Response{},
	}, nil
}

// RemainingTime derives whole seconds left from started_at and the frozen
// time limit alone, so a reload or process restart loses nothing. ok is
// false for untimed quizzes.
func (a Attempt) RemainingTime(now time.Time) (seconds int, ok bool) {
	if a.TimeLimitSec <= 0 {
		return 0, false
	}
	rem := a.TimeLimitSec - int(now.Sub(a.StartedAt).Seconds())
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

func (a Attempt) deadlinePassed(now time.Time) bool {
	rem, ok := a.RemainingTime(now)
	return ok && rem <= 0
}

// RecordResponse upserts the response for one question. Re-answering
// replaces. Once the deadline has passed the attempt is closed to late
// responses even if no submit has landed yet.
func (a *Attempt) RecordResponse(questionID string, answers []string, now time.Time) error {
	if a.Status != StatusInProgress || a.deadlinePassed(now) {
		return ErrAttemptClosed
	}
	if a.question(questionID) == nil {
		return ErrUnknownQuestion
	}
	if a.Responses == nil {
		a.Responses = map[string]Response{}
	}
	a.Responses[questionID] = Response{QuestionID: questionID, Answers: answers}
	return nil
}

// Submit closes and grades the attempt as one transition; no
// submitted-but-ungraded state is ever observable. Submitting an attempt
// that is already submitted or graded is a no-op, which keeps retried
// network calls idempotent. forced marks a deadline-triggered submission for
// the audit trail only and never changes scoring.
func (a *Attempt) Submit(q Quiz, grader *grading.Grader, now time.Time, forced bool) error {
	switch a.Status {
	case StatusSubmitted, StatusGraded:
		return nil
	case StatusAbandoned:
		return ErrAttemptClosed
	}
	sub := now
	a.SubmittedAt = &sub
	a.TimeSpentSec = int(now.Sub(a.StartedAt).Seconds())
	a.ForcedSubmit = forced
	a.applyOutcome(grader.Score(a.gradingView(), a.answersByQuestion(), q.PassingScore), q.PassingScore)
	a.Status = StatusGraded
	return nil
}

// Abandon accepts the externally decided cleanup transition. The engine
// never initiates it.
func (a *Attempt) Abandon() error {
	if a.Status != StatusInProgress {
		return ErrAttemptClosed
	}
	a.Status = StatusAbandoned
	return nil
}

// ManualGrade is an instructor's essay override.
type ManualGrade struct {
	Points  float64 `json:"points"`
	Comment string  `json:"comment,omitempty"`
}

// ApplyManualGrades overrides essay points on a graded attempt and recomputes
// the totals from the frozen snapshot. Auto-scored questions cannot be
// overridden. Awards clamp to [0, question points].
func (a *Attempt) ApplyManualGrades(q Quiz, grader *grading.Grader, grades map[string]ManualGrade) error {
	if a.Status != StatusGraded {
		return ErrAttemptClosed
	}
	for id, g := range grades {
		qu := a.question(id)
		if qu == nil {
			return ErrUnknownQuestion
		}
		if qu.Type != QuestionEssay {
			return ErrNotManualGrade
		}
		pts := g.Points
		if pts < 0 {
			pts = 0
		}
		if pts > qu.Points {
			pts = qu.Points
		}
		if a.ManualPoints == nil {
			a.ManualPoints = map[string]float64{}
		}
		a.ManualPoints[id] = pts
	}
	a.applyOutcome(grader.Score(a.gradingView(), a.answersByQuestion(), q.PassingScore), q.PassingScore)
	return nil
}

// applyOutcome folds manual essay awards into the auto-graded outcome and
// re-derives percentage and verdict against the inclusive pass boundary.
func (a *Attempt) applyOutcome(out grading.Outcome, passingScore float64) {
	earned := out.PointsEarned
	for _, pts := range a.ManualPoints {
		earned += pts
	}
	a.PointsEarned = earned
	a.PointsPossible = out.PointsPossible
	a.Score = 0
	if out.PointsPossible > 0 {
		a.Score = earned / out.PointsPossible * 100
	}
	a.Passed = a.Score >= passingScore
}

func (a Attempt) gradingView() []grading.Q {
	qs := make([]grading.Q, 0, len(a.Questions))
	for _, qu := range a.Questions {
		qs = append(qs, grading.Q{
			ID:        qu.ID,
			Type:      string(qu.Type),
			Points:    qu.Points,
			AnswerKey: qu.CorrectAnswers,
		})
	}
	return qs
}

func (a Attempt) answersByQuestion() map[string][]string {
	m := make(map[string][]string, len(a.Responses))
	for id, r := range a.Responses {
		m[id] = r.Answers
	}
	return m
}
