package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn/openlearn-lms/internal/quiz"
	"github.com/openlearn/openlearn-lms/internal/rbac"
	syncx "github.com/openlearn/openlearn-lms/internal/sync"
)

// POST /attempts  { "quiz_id": "..." }
// The user comes from the token, never the body: an attempt always belongs
// to its caller.
func StartAttemptHandler(store quiz.Store, events syncx.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID string `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuizID == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		a, err := store.StartAttempt(r.Context(), req.QuizID, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		record(r, events, syncx.Event{
			Type:     syncx.EventAttemptStarted,
			Key:      a.ID,
			DataJSON: fmt.Sprintf(`{"quiz_id":%q,"user_id":%q,"attempt_number":%d}`, a.QuizID, a.UserID, a.AttemptNumber),
		})
		writeJSON(w, http.StatusCreated, studentView(a))
	}
}

// POST /attempts/{attemptID}/responses  { "question_id": "...", "answers": [...] }
func SaveResponseHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownAttempt(r, store)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			QuestionID string   `json:"question_id"`
			Answers    []string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		updated, err := store.SaveResponse(r.Context(), a.ID, req.QuestionID, req.Answers)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, studentView(updated))
	}
}

// GET /attempts/{attemptID}/time
// The authoritative deadline check: stateless, derived from started_at, so a
// reload or restart loses nothing. remaining_sec is null for untimed quizzes.
func RemainingTimeHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownAttempt(r, store)
		if err != nil {
			writeErr(w, err)
			return
		}
		var body struct {
			RemainingSec *int `json:"remaining_sec"`
		}
		if sec, ok := a.RemainingTime(time.Now()); ok {
			body.RemainingSec = &sec
		}
		writeJSON(w, http.StatusOK, body)
	}
}

// POST /attempts/{attemptID}/submit  { "forced": bool }
// Safe to retry: a submit on an already graded attempt returns the stored
// result. forced marks deadline-triggered submissions in the event log only.
func SubmitAttemptHandler(store quiz.Store, events syncx.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownAttempt(r, store)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req struct {
			Forced bool `json:"forced"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req) // empty body means a plain submit
		}
		graded, err := store.SubmitAttempt(r.Context(), a.ID, req.Forced)
		if err != nil {
			writeErr(w, err)
			return
		}
		record(r, events, syncx.Event{
			Type:     syncx.EventAttemptSubmitted,
			Key:      graded.ID,
			DataJSON: fmt.Sprintf(`{"forced":%t,"score":%.2f,"passed":%t}`, req.Forced, graded.Score, graded.Passed),
		})
		writeJSON(w, http.StatusOK, studentView(graded))
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownAttempt(r, store)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, studentView(a))
	}
}

// GET /attempts/{attemptID}/review
// Gated on allow_review + graded; show_correct_answers and show_feedback
// strip their payloads independently inside quiz.Review.
func ReviewAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := ownAttempt(r, store)
		if err != nil {
			writeErr(w, err)
			return
		}
		q, err := store.GetQuizFull(r.Context(), a.QuizID)
		if err != nil {
			writeErr(w, err)
			return
		}
		view, err := quiz.Review(q, a)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Attempt   quiz.Attempt          `json:"attempt"`
			Questions []quiz.ReviewQuestion `json:"questions"`
		}{studentView(a), view})
	}
}

// POST /attempts/{attemptID}/grades  { "<question_id>": {"points": n, "comment": "..."}, ... }
// Teacher-only essay override; totals recompute from the frozen snapshot.
func ApplyGradesHandler(store quiz.Store, events syncx.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var grades map[string]quiz.ManualGrade
		if err := json.NewDecoder(r.Body).Decode(&grades); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.ApplyManualGrades(r.Context(), attemptID, grades)
		if err != nil {
			writeErr(w, err)
			return
		}
		record(r, events, syncx.Event{
			Type:     syncx.EventAttemptGradedMan,
			Key:      a.ID,
			DataJSON: fmt.Sprintf(`{"graded_by":%q,"score":%.2f,"passed":%t}`, rbac.SubjectFromContext(r.Context()), a.Score, a.Passed),
		})
		writeJSON(w, http.StatusOK, a)
	}
}

// ownAttempt loads the attempt and enforces that the caller owns it unless
// their role may view any attempt.
func ownAttempt(r *http.Request, store quiz.Store) (quiz.Attempt, error) {
	id := chi.URLParam(r, "attemptID")
	a, err := store.GetAttempt(r.Context(), id)
	if err != nil {
		return quiz.Attempt{}, err
	}
	role := rbac.RoleFromContext(r.Context())
	sub := rbac.SubjectFromContext(r.Context())
	if a.UserID != sub && !rbac.Can(role, "attempt:view-all") {
		return quiz.Attempt{}, quiz.ErrAttemptNotFound // don't leak existence
	}
	return a, nil
}

// studentView strips answer keys and explanations from the frozen snapshot
// before it goes back over the wire; review is the only surface that may
// reveal them, under its own gates.
func studentView(a quiz.Attempt) quiz.Attempt {
	qs := make([]quiz.Question, len(a.Questions))
	copy(qs, a.Questions)
	for i := range qs {
		qs[i].CorrectAnswers = nil
		qs[i].Explanation = ""
	}
	a.Questions = qs
	return a
}

func record(r *http.Request, events syncx.Recorder, e syncx.Event) {
	if events == nil {
		return
	}
	if err := events.Append(r.Context(), e); err != nil {
		log.Printf("event log append failed: %v", err)
	}
}
