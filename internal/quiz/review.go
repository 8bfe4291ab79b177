package quiz

// CanReview reports whether a graded attempt may be shown back to the
// student at all.
func CanReview(q Quiz, a Attempt) bool {
	return q.AllowReview && a.Status == StatusGraded
}

// ReviewQuestion is one question of the post-submission view: the frozen
// presented question, the student's response, and whatever the quiz's reveal
// flags permit.
type ReviewQuestion struct {
	Question
	Response *Response `json:"response,omitempty"`
}

// Review builds the post-submission view from the frozen snapshot.
// show_correct_answers and show_feedback are independent gates: each strips
// only its own field, never the other's.
func Review(q Quiz, a Attempt) ([]ReviewQuestion, error) {
	if !CanReview(q, a) {
		return nil, ErrReviewNotAllowed
	}
	out := make([]ReviewQuestion, 0, len(a.Questions))
	for _, qu := range a.Questions {
		rq := ReviewQuestion{Question: qu}
		if !q.ShowCorrectAnswers {
			rq.CorrectAnswers = nil
		}
		if !q.ShowFeedback {
			rq.Explanation = ""
		}
		if r, ok := a.Responses[qu.ID]; ok {
			resp := r
			rq.Response = &resp
		}
		out = append(out, rq)
	}
	return out, nil
}

// Sanitized returns a student-safe copy of the quiz with answer keys and
// explanations stripped, for serving before or during an attempt.
func Sanitized(q Quiz) Quiz {
	qs := make([]Question, len(q.Questions))
	copy(qs, q.Questions)
	for i := range qs {
		qs[i].CorrectAnswers = nil
		qs[i].Explanation = ""
	}
	q.Questions = qs
	return q
}
