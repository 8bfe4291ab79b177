package quiz_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/openlearn/openlearn-lms/internal/grading"
	"github.com/openlearn/openlearn-lms/internal/quiz"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func sampleQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:           "quiz-1",
		Title:        "Go Basics",
		PassingScore: 50,
		TimeLimitMin: 10,
		AllowReview:  true,
		Questions: []quiz.Question{
			{
				ID: "q1", Type: quiz.QuestionMultipleChoice, Prompt: "Which keyword starts a goroutine?",
				Options:        []quiz.Option{{ID: "a", Text: "go"}, {ID: "b", Text: "run"}, {ID: "c", Text: "spawn"}},
				CorrectAnswers: []string{"a"}, Points: 5, Position: 1,
			},
			{
				ID: "q2", Type: quiz.QuestionTrueFalse, Prompt: "Maps are safe for concurrent writes.",
				Options:        []quiz.Option{{ID: "true", Text: "True"}, {ID: "false", Text: "False"}},
				CorrectAnswers: []string{"false"}, Points: 5, Position: 2,
			},
			{
				ID: "q3", Type: quiz.QuestionShortAnswer, Prompt: "Name the builtin that appends to a slice.",
				CorrectAnswers: []string{"append"}, Points: 5, Position: 3,
			},
		},
	}
}

func startAttempt(t *testing.T, q quiz.Quiz) quiz.Attempt {
	t.Helper()
	a, err := quiz.StartAttempt(q, "student-1", nil, t0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	return a
}

func TestStartAttemptInitialState(t *testing.T) {
	q := sampleQuiz()
	a := startAttempt(t, q)

	if a.Status != quiz.StatusInProgress {
		t.Errorf("status = %s, want in_progress", a.Status)
	}
	if a.AttemptNumber != 1 {
		t.Errorf("attempt_number = %d, want 1", a.AttemptNumber)
	}
	if a.TimeLimitSec != 600 {
		t.Errorf("time_limit_sec = %d, want 600", a.TimeLimitSec)
	}
	if len(a.Questions) != 3 {
		t.Fatalf("resolved order has %d questions, want 3", len(a.Questions))
	}
	if len(a.Responses) != 0 {
		t.Errorf("responses not empty at start")
	}
}

func TestStartAttemptRejectsInvalidQuiz(t *testing.T) {
	q := sampleQuiz()
	q.PassingScore = 120
	if _, err := quiz.StartAttempt(q, "student-1", nil, t0, nil); err == nil {
		t.Fatal("expected InvalidQuiz error")
	}
	var iq *quiz.InvalidQuizError
	q = sampleQuiz()
	q.Questions[0].Points = 0
	_, err := quiz.StartAttempt(q, "student-1", nil, t0, nil)
	if !errors.As(err, &iq) {
		t.Fatalf("got %v, want InvalidQuizError", err)
	}
}

func TestStartAttemptBlockedByOpenAttempt(t *testing.T) {
	q := sampleQuiz()
	open := startAttempt(t, q)
	_, err := quiz.StartAttempt(q, "student-1", []quiz.Attempt{open}, t0, nil)
	var ne *quiz.NotEligibleError
	if !errors.As(err, &ne) {
		t.Fatalf("got %v, want NotEligibleError", err)
	}
	if ne.Reason != quiz.ReasonAttemptInProgress {
		t.Errorf("reason = %s, want attempt_in_progress", ne.Reason)
	}
}

func TestShuffleFrozenAtStart(t *testing.T) {
	q := sampleQuiz()
	q.ShuffleQuestions = true
	q.ShuffleAnswers = true
	a := startAttempt(t, q)

	ids := map[string]bool{}
	for _, qu := range a.Questions {
		ids[qu.ID] = true
	}
	for _, qu := range q.Questions {
		if !ids[qu.ID] {
			t.Fatalf("resolved order lost question %s", qu.ID)
		}
	}

	// The snapshot is a value: re-reading it yields the identical ordering,
	// which is what survives a page reload.
	first := make([]string, len(a.Questions))
	for i, qu := range a.Questions {
		first[i] = qu.ID
	}
	for i, qu := range a.Questions {
		if qu.ID != first[i] {
			t.Fatalf("order changed between reads")
		}
	}
}

func TestSnapshotIsolatedFromQuizEdits(t *testing.T) {
	q := sampleQuiz()
	a := startAttempt(t, q)

	// Author edits the quiz after the attempt started.
	q.Questions[0].Points = 100
	q.Questions[0].CorrectAnswers = []string{"c"}

	if a.Questions[0].Points == 100 {
		t.Error("attempt snapshot picked up a later quiz edit")
	}
}

func TestRecordResponseReplaces(t *testing.T) {
	a := startAttempt(t, sampleQuiz())

	if err := a.RecordResponse("q1", []string{"b"}, t0.Add(time.Minute)); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	if err := a.RecordResponse("q1", []string{"a"}, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("RecordResponse (re-answer): %v", err)
	}
	r := a.Responses["q1"]
	if len(r.Answers) != 1 || r.Answers[0] != "a" {
		t.Errorf("re-answering should replace, got %v", r.Answers)
	}
}

func TestRecordResponseUnknownQuestion(t *testing.T) {
	a := startAttempt(t, sampleQuiz())
	if err := a.RecordResponse("nope", []string{"a"}, t0); !errors.Is(err, quiz.ErrUnknownQuestion) {
		t.Fatalf("got %v, want ErrUnknownQuestion", err)
	}
}

func TestRemainingTime(t *testing.T) {
	a := startAttempt(t, sampleQuiz())

	if sec, ok := a.RemainingTime(t0.Add(4 * time.Minute)); !ok || sec != 360 {
		t.Errorf("RemainingTime = %d/%t, want 360/true", sec, ok)
	}
	if sec, ok := a.RemainingTime(t0.Add(15 * time.Minute)); !ok || sec != 0 {
		t.Errorf("past deadline RemainingTime = %d/%t, want 0/true", sec, ok)
	}

	untimed := sampleQuiz()
	untimed.TimeLimitMin = 0
	b := startAttempt(t, untimed)
	if _, ok := b.RemainingTime(t0.Add(24 * time.Hour)); ok {
		t.Error("untimed quiz reported a remaining time")
	}
}

func TestLateResponseRejected(t *testing.T) {
	a := startAttempt(t, sampleQuiz())
	deadline := t0.Add(10 * time.Minute)

	err := a.RecordResponse("q1", []string{"a"}, deadline)
	if !errors.Is(err, quiz.ErrAttemptClosed) {
		t.Fatalf("got %v, want ErrAttemptClosed at the deadline", err)
	}
	if len(a.Responses) != 0 {
		t.Error("late response was applied")
	}
}

func TestForcedSubmitScoresRecordedOnly(t *testing.T) {
	// Ten-minute quiz, one of three questions answered when time runs out:
	// the forced submit grades what is there and the attempt ends graded.
	q := sampleQuiz()
	a := startAttempt(t, q)
	g := grading.NewGrader()

	if err := a.RecordResponse("q1", []string{"a"}, t0.Add(time.Minute)); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	if err := a.Submit(q, g, t0.Add(10*time.Minute), true); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if a.Status != quiz.StatusGraded {
		t.Errorf("status = %s, want graded (not abandoned)", a.Status)
	}
	if a.PointsEarned != 5 || a.PointsPossible != 15 {
		t.Errorf("earned/possible = %v/%v, want 5/15", a.PointsEarned, a.PointsPossible)
	}
	if !a.ForcedSubmit {
		t.Error("forced flag not recorded")
	}
	if a.TimeSpentSec != 600 {
		t.Errorf("time_spent = %d, want 600", a.TimeSpentSec)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	q := sampleQuiz()
	a := startAttempt(t, q)
	g := grading.NewGrader()

	if err := a.RecordResponse("q1", []string{"a"}, t0.Add(time.Minute)); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	if err := a.Submit(q, g, t0.Add(2*time.Minute), false); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	earned, score, passed := a.PointsEarned, a.Score, a.Passed
	submittedAt := *a.SubmittedAt

	if err := a.Submit(q, g, t0.Add(9*time.Minute), false); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if a.PointsEarned != earned || a.Score != score || a.Passed != passed {
		t.Errorf("second submit changed the result")
	}
	if !a.SubmittedAt.Equal(submittedAt) {
		t.Errorf("second submit moved submitted_at")
	}
}

func TestSubmitGradesAtomically(t *testing.T) {
	q := sampleQuiz()
	a := startAttempt(t, q)
	g := grading.NewGrader()

	if err := a.RecordResponse("q1", []string{"a"}, t0); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordResponse("q2", []string{"false"}, t0); err != nil {
		t.Fatal(err)
	}
	if err := a.RecordResponse("q3", []string{" Append "}, t0); err != nil {
		t.Fatal(err)
	}
	if err := a.Submit(q, g, t0.Add(5*time.Minute), false); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if a.Status != quiz.StatusGraded {
		t.Fatalf("status = %s, want graded (no observable submitted-but-ungraded state)", a.Status)
	}
	if a.PointsEarned != 15 || a.Score != 100 || !a.Passed {
		t.Errorf("got earned=%v score=%v passed=%t, want 15/100/true", a.PointsEarned, a.Score, a.Passed)
	}
	if a.SubmittedAt == nil {
		t.Fatal("submitted_at not set")
	}
	if a.TimeSpentSec != 300 {
		t.Errorf("time_spent = %d, want 300", a.TimeSpentSec)
	}
}

func TestAbandonOnlyFromInProgress(t *testing.T) {
	q := sampleQuiz()
	a := startAttempt(t, q)
	if err := a.Abandon(); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if a.Status != quiz.StatusAbandoned {
		t.Errorf("status = %s, want abandoned", a.Status)
	}
	if err := a.Abandon(); !errors.Is(err, quiz.ErrAttemptClosed) {
		t.Errorf("second abandon: got %v, want ErrAttemptClosed", err)
	}
	// Submitting an abandoned attempt stays rejected.
	if err := a.Submit(q, grading.NewGrader(), t0, false); !errors.Is(err, quiz.ErrAttemptClosed) {
		t.Errorf("submit after abandon: got %v, want ErrAttemptClosed", err)
	}
}

func TestManualEssayGrades(t *testing.T) {
	q := sampleQuiz()
	q.Questions = append(q.Questions, quiz.Question{
		ID: "q4", Type: quiz.QuestionEssay, Prompt: "Explain channels.", Points: 5, Position: 4,
	})
	a := startAttempt(t, q)
	g := grading.NewGrader()

	if err := a.RecordResponse("q4", []string{"they communicate by sharing"}, t0); err != nil {
		t.Fatal(err)
	}
	if err := a.Submit(q, g, t0.Add(time.Minute), false); err != nil {
		t.Fatal(err)
	}
	if a.PointsPossible != 20 || a.PointsEarned != 0 {
		t.Fatalf("pre-override earned/possible = %v/%v, want 0/20", a.PointsEarned, a.PointsPossible)
	}

	err := a.ApplyManualGrades(q, g, map[string]quiz.ManualGrade{"q4": {Points: 5, Comment: "solid"}})
	if err != nil {
		t.Fatalf("ApplyManualGrades: %v", err)
	}
	if a.PointsEarned != 5 || a.Score != 25 {
		t.Errorf("post-override earned/score = %v/%v, want 5/25", a.PointsEarned, a.Score)
	}

	// Overrides clamp to the question's worth and only apply to essays.
	if err := a.ApplyManualGrades(q, g, map[string]quiz.ManualGrade{"q4": {Points: 50}}); err != nil {
		t.Fatal(err)
	}
	if a.PointsEarned != 5 {
		t.Errorf("clamped award = %v, want 5", a.PointsEarned)
	}
	if err := a.ApplyManualGrades(q, g, map[string]quiz.ManualGrade{"q1": {Points: 5}}); !errors.Is(err, quiz.ErrNotManualGrade) {
		t.Errorf("got %v, want ErrNotManualGrade", err)
	}
}
