package quiz_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openlearn/openlearn-lms/internal/db"
	"github.com/openlearn/openlearn-lms/internal/quiz"
)

func newSQLStore(t *testing.T) *quiz.SQLStore {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return quiz.NewSQLStore(dbh)
}

func TestSQLStoreQuizRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	q := sampleQuiz()
	q.Questions[0].Explanation = "go starts a goroutine"

	if err := store.PutQuiz(ctx, q); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}

	full, err := store.GetQuizFull(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuizFull: %v", err)
	}
	if len(full.Questions) != 3 || len(full.Questions[0].CorrectAnswers) == 0 {
		t.Error("full quiz lost questions or answer keys")
	}

	safe, err := store.GetQuiz(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	for _, qu := range safe.Questions {
		if len(qu.CorrectAnswers) != 0 || qu.Explanation != "" {
			t.Fatalf("student-safe quiz leaked key for %s", qu.ID)
		}
	}

	if _, err := store.GetQuiz(ctx, "missing"); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Errorf("got %v, want ErrQuizNotFound", err)
	}
}

func TestSQLStoreAttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	if err := store.PutQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatal(err)
	}

	a, err := store.StartAttempt(ctx, "quiz-1", "student-1")
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	if a.Status != quiz.StatusInProgress || a.AttemptNumber != 1 {
		t.Fatalf("fresh attempt: %+v", a)
	}

	// Frozen order survives the round-trip to disk.
	again, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	for i := range a.Questions {
		if a.Questions[i].ID != again.Questions[i].ID {
			t.Fatalf("persisted question order diverged at %d", i)
		}
	}

	if _, err := store.SaveResponse(ctx, a.ID, "q1", []string{"a"}); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "nope", []string{"a"}); !errors.Is(err, quiz.ErrUnknownQuestion) {
		t.Fatalf("unknown question: got %v", err)
	}

	gradedA, err := store.SubmitAttempt(ctx, a.ID, false)
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if gradedA.Status != quiz.StatusGraded || gradedA.PointsEarned != 5 || gradedA.PointsPossible != 15 {
		t.Fatalf("graded attempt: %+v", gradedA)
	}

	retried, err := store.SubmitAttempt(ctx, a.ID, false)
	if err != nil {
		t.Fatalf("retried submit: %v", err)
	}
	if retried.PointsEarned != gradedA.PointsEarned || !retried.SubmittedAt.Equal(*gradedA.SubmittedAt) {
		t.Error("retried submit did not return the stored result")
	}

	// Responses are closed after grading.
	if _, err := store.SaveResponse(ctx, a.ID, "q2", []string{"false"}); !errors.Is(err, quiz.ErrAttemptClosed) {
		t.Fatalf("post-grade response: got %v, want ErrAttemptClosed", err)
	}
}

func TestSQLStoreOneOpenAttemptPerUser(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	if err := store.PutQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatal(err)
	}

	if _, err := store.StartAttempt(ctx, "quiz-1", "student-1"); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := store.StartAttempt(ctx, "quiz-1", "student-1")
	var ne *quiz.NotEligibleError
	if !errors.As(err, &ne) || ne.Reason != quiz.ReasonAttemptInProgress {
		t.Fatalf("second start: got %v, want attempt_in_progress", err)
	}
	if _, err := store.StartAttempt(ctx, "quiz-1", "student-2"); err != nil {
		t.Errorf("other user's start blocked: %v", err)
	}
}

func TestSQLStoreListAttempts(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	if err := store.PutQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatal(err)
	}

	a1, err := store.StartAttempt(ctx, "quiz-1", "student-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SubmitAttempt(ctx, a1.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := store.StartAttempt(ctx, "quiz-1", "student-2"); err != nil {
		t.Fatal(err)
	}

	mine, err := store.ListAttempts(ctx, quiz.AttemptListOpts{QuizID: "quiz-1", UserID: "student-1"})
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(mine) != 1 || mine[0].UserID != "student-1" {
		t.Fatalf("user filter: got %d rows", len(mine))
	}

	open, err := store.ListAttempts(ctx, quiz.AttemptListOpts{Status: "in_progress"})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].UserID != "student-2" {
		t.Fatalf("status filter: got %d rows", len(open))
	}
}

func TestSQLStoreAbandonStale(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	if err := store.PutQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatal(err)
	}
	a, err := store.StartAttempt(ctx, "quiz-1", "student-1")
	if err != nil {
		t.Fatal(err)
	}

	// A cutoff in the future sweeps everything currently open.
	n, err := store.AbandonStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("AbandonStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("marked %d, want 1", n)
	}
	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != quiz.StatusAbandoned {
		t.Errorf("status = %s, want abandoned", got.Status)
	}
}

func TestSQLStoreManualGrades(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	q := sampleQuiz()
	q.Questions = append(q.Questions, quiz.Question{
		ID: "q4", Type: quiz.QuestionEssay, Prompt: "Explain interfaces.", Points: 5, Position: 4,
	})
	if err := store.PutQuiz(ctx, q); err != nil {
		t.Fatal(err)
	}

	a, err := store.StartAttempt(ctx, "quiz-1", "student-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveResponse(ctx, a.ID, "q4", []string{"they are satisfied implicitly"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SubmitAttempt(ctx, a.ID, false); err != nil {
		t.Fatal(err)
	}

	updated, err := store.ApplyManualGrades(ctx, a.ID, map[string]quiz.ManualGrade{"q4": {Points: 4, Comment: "good"}})
	if err != nil {
		t.Fatalf("ApplyManualGrades: %v", err)
	}
	if updated.PointsEarned != 4 {
		t.Errorf("earned = %v, want 4", updated.PointsEarned)
	}

	// The override survives a re-read.
	got, err := store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ManualPoints["q4"] != 4 || got.PointsEarned != 4 {
		t.Errorf("persisted override: manual=%v earned=%v, want 4/4", got.ManualPoints["q4"], got.PointsEarned)
	}
}
