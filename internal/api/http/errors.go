package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openlearn/openlearn-lms/internal/quiz"
)

type errBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// writeErr maps the engine's error taxonomy onto status codes. Everything
// here is a recoverable, structured result for the caller, never a 5xx,
// except genuinely unexpected failures.
func writeErr(w http.ResponseWriter, err error) {
	var notEligible *quiz.NotEligibleError
	var invalid *quiz.InvalidQuizError
	switch {
	case errors.As(err, &notEligible):
		writeJSON(w, http.StatusConflict, errBody{Error: "not_eligible", Reason: string(notEligible.Reason)})
	case errors.Is(err, quiz.ErrAttemptClosed):
		writeJSON(w, http.StatusConflict, errBody{Error: "attempt_closed"})
	case errors.Is(err, quiz.ErrUnknownQuestion):
		writeJSON(w, http.StatusBadRequest, errBody{Error: "unknown_question"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: "invalid_quiz", Detail: invalid.Detail})
	case errors.Is(err, quiz.ErrQuizNotFound), errors.Is(err, quiz.ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, errBody{Error: "not_found"})
	case errors.Is(err, quiz.ErrReviewNotAllowed):
		writeJSON(w, http.StatusForbidden, errBody{Error: "review_not_allowed"})
	case errors.Is(err, quiz.ErrNotManualGrade):
		writeJSON(w, http.StatusBadRequest, errBody{Error: "not_manually_gradable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal", Detail: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
