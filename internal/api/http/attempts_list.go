package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/openlearn/openlearn-lms/internal/quiz"
	"github.com/openlearn/openlearn-lms/internal/rbac"
)

// GET /attempts?quiz_id=...&user_id=...&status=...&limit=50&offset=0
// Callers without attempt:view-all are scoped to their own attempts: the
// user_id filter is forced to the token subject.
func ListAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())

		quizID := strings.TrimSpace(r.URL.Query().Get("quiz_id"))
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		if !rbac.Can(role, "attempt:view-all") {
			userID = sub
		}

		list, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			QuizID: quizID,
			UserID: userID,
			Status: status,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		for i := range list {
			list[i] = studentView(list[i])
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
