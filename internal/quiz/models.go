package quiz

import (
	"fmt"
	"time"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type"`
	Prompt         string       `json:"prompt"`
	Options        []Option     `json:"options,omitempty"` // choice types only
	CorrectAnswers []string     `json:"correct_answers,omitempty"`
	Explanation    string       `json:"explanation,omitempty"`
	Points         float64      `json:"points"`
	Position       int          `json:"position"`
	Difficulty     string       `json:"difficulty,omitempty"`
}

type Quiz struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Instructions       string     `json:"instructions,omitempty"`
	TimeLimitMin       int        `json:"time_limit_min,omitempty"`    // 0 = untimed
	AttemptsAllowed    int        `json:"attempts_allowed,omitempty"`  // 0 = unlimited
	PassingScore       float64    `json:"passing_score"`               // percent, inclusive boundary
	ShuffleQuestions   bool       `json:"shuffle_questions"`
	ShuffleAnswers     bool       `json:"shuffle_answers"`
	ShowCorrectAnswers bool       `json:"show_correct_answers"`
	ShowFeedback       bool       `json:"show_feedback"`
	AllowReview        bool       `json:"allow_review"`
	Questions          []Question `json:"questions"`
}

func (q Quiz) TotalPoints() float64 {
	total := 0.0
	for _, qu := range q.Questions {
		total += qu.Points
	}
	return total
}

func (q Quiz) TimeLimitSec() int { return q.TimeLimitMin * 60 }

// Validate rejects malformed quizzes at construction time, so grading never
// sees a zero-point quiz or an out-of-range passing score.
func (q Quiz) Validate() error {
	if q.ID == "" {
		return &InvalidQuizError{Detail: "id required"}
	}
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return &InvalidQuizError{Detail: fmt.Sprintf("passing_score %.2f outside 0-100", q.PassingScore)}
	}
	if len(q.Questions) == 0 {
		return &InvalidQuizError{Detail: "at least one question required"}
	}
	for _, qu := range q.Questions {
		if qu.Points <= 0 {
			return &InvalidQuizError{Detail: fmt.Sprintf("question %s: points must be positive", qu.ID)}
		}
		switch qu.Type {
		case QuestionMultipleChoice, QuestionTrueFalse:
			if len(qu.Options) == 0 {
				return &InvalidQuizError{Detail: fmt.Sprintf("question %s: options required", qu.ID)}
			}
			if len(qu.CorrectAnswers) == 0 {
				return &InvalidQuizError{Detail: fmt.Sprintf("question %s: answer key required", qu.ID)}
			}
		case QuestionShortAnswer:
			if len(qu.CorrectAnswers) == 0 {
				return &InvalidQuizError{Detail: fmt.Sprintf("question %s: answer key required", qu.ID)}
			}
		case QuestionEssay:
			// no key; manually graded
		default:
			return &InvalidQuizError{Detail: fmt.Sprintf("question %s: unknown type %q", qu.ID, qu.Type)}
		}
	}
	if q.TotalPoints() <= 0 {
		return &InvalidQuizError{Detail: "total points must be positive"}
	}
	return nil
}

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusGraded     AttemptStatus = "graded"
	StatusAbandoned  AttemptStatus = "abandoned"
)

type Response struct {
	QuestionID string   `json:"question_id"`
	Answers    []string `json:"answers"` // option ids for choice types, free text otherwise
}

// Attempt is one user's pass through a quiz. Questions holds the resolved
// order frozen at start, shuffle outcome included; grading reads only this
// snapshot so later quiz edits never change an attempt's result.
type Attempt struct {
	ID             string              `json:"id"`
	QuizID         string              `json:"quiz_id"`
	UserID         string              `json:"user_id"`
	AttemptNumber  int                 `json:"attempt_number"`
	Status         AttemptStatus       `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty"`
	TimeSpentSec   int                 `json:"time_spent_sec,omitempty"`
	TimeLimitSec   int                 `json:"time_limit_sec,omitempty"` // frozen from the quiz at start
	Questions      []Question          `json:"questions"`
	Responses      map[string]Response `json:"responses"`
	ManualPoints   map[string]float64  `json:"manual_points,omitempty"` // essay overrides, question id -> points
	ForcedSubmit   bool                `json:"forced_submit,omitempty"`
	PointsEarned   float64             `json:"points_earned"`
	PointsPossible float64             `json:"points_possible"`
	Score          float64             `json:"score"`
	Passed         bool                `json:"passed"`
}

func (a Attempt) question(id string) *Question {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i]
		}
	}
	return nil
}
