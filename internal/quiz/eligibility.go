package quiz

// Eligibility is the structured answer to "may this user start a new
// attempt". Not-allowed is a result, not an error.
type Eligibility struct {
	Allowed bool              `json:"allowed"`
	Reason  EligibilityReason `json:"reason,omitempty"`
}

// CanStart is side-effect free: an open attempt blocks a new one, and a
// positive attempts cap counts submitted/graded attempts against the limit.
// Abandoned attempts do not consume the cap.
func CanStart(q Quiz, history []Attempt) Eligibility {
	used := 0
	for _, a := range history {
		switch a.Status {
		case StatusInProgress:
			return Eligibility{Reason: ReasonAttemptInProgress}
		case StatusSubmitted, StatusGraded:
			used++
		}
	}
	if q.AttemptsAllowed > 0 && used >= q.AttemptsAllowed {
		return Eligibility{Reason: ReasonAttemptsExhausted}
	}
	return Eligibility{Allowed: true}
}
