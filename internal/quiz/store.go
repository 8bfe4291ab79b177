package quiz

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/openlearn/openlearn-lms/internal/grading"
)

type AttemptListOpts struct {
	QuizID string
	UserID string
	Status string
	Limit  int
	Offset int
}

// Store is the engine's persistence boundary. Implementations decide where
// attempts live; the lifecycle rules themselves stay in the Attempt methods.
type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)     // student-safe, keys stripped
	GetQuizFull(ctx context.Context, id string) (Quiz, error) // with answer keys

	StartAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	SaveResponse(ctx context.Context, attemptID, questionID string, answers []string) (Attempt, error)
	SubmitAttempt(ctx context.Context, attemptID string, forced bool) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	ApplyManualGrades(ctx context.Context, attemptID string, grades map[string]ManualGrade) (Attempt, error)

	// AbandonStale marks in_progress attempts untouched since before the
	// cutoff as abandoned and reports how many changed. The decision to
	// abandon belongs to the caller's cleanup policy, not the engine.
	AbandonStale(ctx context.Context, cutoff time.Time) (int, error)
}

type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt
	grader   *grading.Grader
	now      func() time.Time
	rng      *rand.Rand
}

// NewMemoryStore backs the engine with process memory, for dev mode and
// tests. now and rng are injectable; nil picks time.Now and a fresh seed.
func NewMemoryStore(now func() time.Time, rng *rand.Rand) Store {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
		grader:   grading.NewGrader(),
		now:      now,
		rng:      rng,
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz) error {
	if err := q.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := m.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return Sanitized(q), nil
}

func (m *memoryStore) GetQuizFull(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (m *memoryStore) StartAttempt(_ context.Context, quizID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[quizID]
	if !ok {
		return Attempt{}, ErrQuizNotFound
	}
	history := m.historyLocked(quizID, userID)
	a, err := StartAttempt(q, userID, history, m.now(), m.rng)
	if err != nil {
		return Attempt{}, err
	}
	m.attempts[a.ID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return cloneAttempt(a), nil
}

func (m *memoryStore) SaveResponse(_ context.Context, attemptID, questionID string, answers []string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	a = cloneAttempt(a)
	if err := a.RecordResponse(questionID, answers, m.now()); err != nil {
		return Attempt{}, err
	}
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) SubmitAttempt(_ context.Context, attemptID string, forced bool) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	q, ok := m.quizzes[a.QuizID]
	if !ok {
		return Attempt{}, ErrQuizNotFound
	}
	a = cloneAttempt(a)
	if err := a.Submit(q, m.grader, m.now(), forced); err != nil {
		return Attempt{}, err
	}
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && string(a.Status) != opts.Status {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	sortAttemptsByStart(out)
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) ApplyManualGrades(_ context.Context, attemptID string, grades map[string]ManualGrade) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	q, ok := m.quizzes[a.QuizID]
	if !ok {
		return Attempt{}, ErrQuizNotFound
	}
	a = cloneAttempt(a)
	if err := a.ApplyManualGrades(q, m.grader, grades); err != nil {
		return Attempt{}, err
	}
	m.attempts[attemptID] = a
	return cloneAttempt(a), nil
}

func (m *memoryStore) AbandonStale(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.attempts {
		if a.Status != StatusInProgress || !a.StartedAt.Before(cutoff) {
			continue
		}
		a = cloneAttempt(a)
		if err := a.Abandon(); err != nil {
			continue
		}
		m.attempts[id] = a
		n++
	}
	return n, nil
}

func (m *memoryStore) historyLocked(quizID, userID string) []Attempt {
	var out []Attempt
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func cloneAttempt(a Attempt) Attempt {
	if a.Responses != nil {
		rs := make(map[string]Response, len(a.Responses))
		for k, v := range a.Responses {
			rs[k] = v
		}
		a.Responses = rs
	}
	if a.ManualPoints != nil {
		mp := make(map[string]float64, len(a.ManualPoints))
		for k, v := range a.ManualPoints {
			mp[k] = v
		}
		a.ManualPoints = mp
	}
	return a
}

func sortAttemptsByStart(list []Attempt) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt) // newest first
	})
}

func paginate(list []Attempt, limit, offset int) []Attempt {
	if offset >= len(list) {
		return []Attempt{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
