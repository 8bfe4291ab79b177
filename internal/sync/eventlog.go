package syncx

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Event is one append-only audit row. The attempt flow writes
// attempt_started and attempt_submitted events; the forced flag on a
// submission lives here, in the audit trail, not in scoring.
type Event struct {
	Offset    int64
	Type      string
	Key       string // natural key: attempt id
	DataJSON  string
	CreatedAt int64
}

const (
	EventAttemptStarted   = "attempt_started"
	EventAttemptSubmitted = "attempt_submitted"
	EventAttemptGradedMan = "attempt_manually_graded"
)

// Recorder receives audit events. Recording is best-effort for callers:
// handlers log and continue when an append fails.
type Recorder interface {
	Append(ctx context.Context, e Event) error
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// MemoryLog keeps events in memory for dev mode and tests.
type MemoryLog struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

func (l *MemoryLog) Append(_ context.Context, e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Offset = int64(len(l.events) + 1)
	e.CreatedAt = time.Now().Unix()
	l.events = append(l.events, e)
	return nil
}

func (l *MemoryLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
