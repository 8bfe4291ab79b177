package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openlearn/openlearn-lms/internal/grading"
)

// SQLStore persists quizzes and attempts through database/sql, over sqlite
// or postgres. Quizzes and the frozen attempt snapshots are stored as JSON
// columns; grading always reads the snapshot, never the live quiz row.
type SQLStore struct {
	db     *sql.DB
	grader *grading.Grader
	now    func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, grader: grading.NewGrader(), now: time.Now}
}

var _ Store = (*SQLStore)(nil)

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	qj, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,quiz_json,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, quiz_json=EXCLUDED.quiz_json`,
		q.ID, q.Title, string(qj), s.now().Unix())
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := s.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return Sanitized(q), nil
}

func (s *SQLStore) GetQuizFull(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT quiz_json FROM quizzes WHERE id=$1`, id)
	var qjson string
	if err := row.Scan(&qjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	var q Quiz
	if err := json.Unmarshal([]byte(qjson), &q); err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) StartAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	q, err := s.GetQuizFull(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	history, err := s.ListAttempts(ctx, AttemptListOpts{QuizID: quizID, UserID: userID})
	if err != nil {
		return Attempt{}, err
	}
	a, err := StartAttempt(q, userID, history, s.now(), nil)
	if err != nil {
		return Attempt{}, err
	}
	qj, err := json.Marshal(a.Questions)
	if err != nil {
		return Attempt{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,quiz_id,user_id,attempt_number,status,started_at,time_limit_sec,questions_json,responses_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'{}')`,
		a.ID, a.QuizID, a.UserID, a.AttemptNumber, string(a.Status), a.StartedAt.Unix(), a.TimeLimitSec, string(qj))
	if err != nil {
		// The partial unique index catches a concurrent start from another
		// tab or device; surface it as the structured rejection.
		if isUniqueViolation(err) {
			return Attempt{}, &NotEligibleError{Reason: ReasonAttemptInProgress}
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, attemptColumns+` WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

func (s *SQLStore) SaveResponse(ctx context.Context, attemptID, questionID string, answers []string) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if err := a.RecordResponse(questionID, answers, s.now()); err != nil {
		return Attempt{}, err
	}
	buf, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE attempts SET responses_json=$1 WHERE id=$2 AND status='in_progress'`,
		string(buf), attemptID)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SubmitAttempt(ctx context.Context, attemptID string, forced bool) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted || a.Status == StatusGraded {
		return a, nil // idempotent retry: stored result, no re-grade
	}
	q, err := s.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	if err := a.Submit(q, s.grader, s.now(), forced); err != nil {
		return Attempt{}, err
	}
	rj, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
			status=$1, submitted_at=$2, time_spent_sec=$3, forced_submit=$4,
			responses_json=$5, points_earned=$6, points_possible=$7, score=$8, passed=$9
		WHERE id=$10 AND status='in_progress'`,
		string(a.Status), a.SubmittedAt.Unix(), a.TimeSpentSec, a.ForcedSubmit,
		string(rj), a.PointsEarned, a.PointsPossible, a.Score, a.Passed, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Lost a race against another submit; the stored grade wins.
		return s.GetAttempt(ctx, attemptID)
	}
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	where := []string{}
	args := []interface{}{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.UserID != "" {
		add("user_id=$%d", opts.UserID)
	}
	if opts.Status != "" {
		add("status=$%d", opts.Status)
	}
	query := attemptColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ApplyManualGrades(ctx context.Context, attemptID string, grades map[string]ManualGrade) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	q, err := s.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	if err := a.ApplyManualGrades(q, s.grader, grades); err != nil {
		return Attempt{}, err
	}
	mj, err := json.Marshal(a.ManualPoints)
	if err != nil {
		return Attempt{}, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE attempts SET
			manual_json=$1, points_earned=$2, score=$3, passed=$4
		WHERE id=$5 AND status='graded'`,
		string(mj), a.PointsEarned, a.Score, a.Passed, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) AbandonStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET status='abandoned' WHERE status='in_progress' AND started_at < $1`,
		cutoff.Unix())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const attemptColumns = `SELECT id,quiz_id,user_id,attempt_number,status,started_at,submitted_at,
	time_spent_sec,time_limit_sec,forced_submit,questions_json,responses_json,manual_json,
	points_earned,points_possible,score,passed FROM attempts`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var (
		a           Attempt
		status      string
		startedAt   int64
		submittedAt sql.NullInt64
		qjson       string
		rjson       string
		mjson       string
	)
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.AttemptNumber, &status, &startedAt, &submittedAt,
		&a.TimeSpentSec, &a.TimeLimitSec, &a.ForcedSubmit, &qjson, &rjson, &mjson,
		&a.PointsEarned, &a.PointsPossible, &a.Score, &a.Passed); err != nil {
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	a.StartedAt = time.Unix(startedAt, 0).UTC()
	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0).UTC()
		a.SubmittedAt = &t
	}
	if err := json.Unmarshal([]byte(qjson), &a.Questions); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(rjson), &a.Responses); err != nil {
		a.Responses = map[string]Response{}
	}
	if mjson != "" {
		if err := json.Unmarshal([]byte(mjson), &a.ManualPoints); err != nil {
			a.ManualPoints = nil
		}
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") // postgres
}
