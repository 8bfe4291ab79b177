package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn/openlearn-lms/internal/quiz"
	"github.com/openlearn/openlearn-lms/internal/rbac"
)

// POST /quizzes — authoring boundary. The engine validates and stores; how
// the quiz was built is the authoring surface's business.
func UploadQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q quiz.Quiz
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := store.PutQuiz(r.Context(), q); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": q.ID})
	}
}

// GET /quizzes/{quizID} — answer keys and explanations are stripped unless
// the caller may see them.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())
		var (
			q   quiz.Quiz
			err error
		)
		if rbac.Can(role, "quiz:view-keys") {
			q, err = store.GetQuizFull(r.Context(), id)
		} else {
			q, err = store.GetQuiz(r.Context(), id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes/{quizID}/eligibility — the gate result for the current user,
// so the UI knows whether to offer Start.
func EligibilityHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		sub := rbac.SubjectFromContext(r.Context())
		q, err := store.GetQuizFull(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		history, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{QuizID: id, UserID: sub})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, quiz.CanStart(q, history))
	}
}
