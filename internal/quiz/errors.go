package quiz

import "errors"

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptClosed    = errors.New("attempt is not open")
	ErrUnknownQuestion  = errors.New("question not in attempt")
	ErrReviewNotAllowed = errors.New("review not allowed")
	ErrNotManualGrade   = errors.New("question is not manually gradable")
)

type EligibilityReason string

const (
	ReasonAttemptsExhausted EligibilityReason = "attempts_exhausted"
	ReasonAttemptInProgress EligibilityReason = "attempt_in_progress"
)

// NotEligibleError blocks a start and carries the human-facing reason.
type NotEligibleError struct {
	Reason EligibilityReason
}

func (e *NotEligibleError) Error() string {
	return "not eligible to start: " + string(e.Reason)
}

// InvalidQuizError rejects a malformed quiz at construction, not at grading.
type InvalidQuizError struct {
	Detail string
}

func (e *InvalidQuizError) Error() string {
	return "invalid quiz: " + e.Detail
}
