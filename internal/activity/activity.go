// Package activity records learner and author activity events, such as
// enrollments and progress updates, for later analysis.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Event types.
const (
	Enrolled        = "course_enrolled"
	ProgressUpdated = "progress_updated"
	CommentAdded    = "comment_added"
	CoursePublished = "course_published"
)

// Event is one recorded activity.
type Event struct {
	UserID    string
	CourseID  string
	Type      string
	Data      map[string]any
	CreatedAt time.Time
}

// Logger records events.
type Logger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopLogger ignores all events.
type NopLogger struct{}

func (NopLogger) LogEvent(context.Context, Event) error {
	return nil
}

func validate(e Event) error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// MemoryLogger keeps events in memory.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{events: []Event{}}
}

func (l *MemoryLogger) LogEvent(_ context.Context, event Event) error {
	if err := validate(event); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// Schema creates the table used by PostgresLogger.
const Schema = `CREATE TABLE IF NOT EXISTS activity_events (
	id         BIGSERIAL   PRIMARY KEY,
	user_id    TEXT        NOT NULL,
	course_id  TEXT        NOT NULL DEFAULT '',
	event_type TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresLogger inserts events into the activity_events table.
type PostgresLogger struct {
	pool *pgxpool.Pool
}

// NewPostgresLogger creates the logger and ensures its table exists.
func NewPostgresLogger(ctx context.Context, pool *pgxpool.Pool) (*PostgresLogger, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("create activity_events table: %w", err)
	}
	return &PostgresLogger{pool: pool}, nil
}

func (l *PostgresLogger) LogEvent(ctx context.Context, event Event) error {
	if err := validate(event); err != nil {
		return err
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := l.pool.Exec(ctx,
		`INSERT INTO activity_events (user_id, course_id, event_type, data, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		event.UserID,
		event.CourseID,
		event.Type,
		string(data),
		createdAt,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.Type,
		"user_id", event.UserID,
		"course_id", event.CourseID,
	)
	return nil
}

// ForCourse returns the course's events, oldest first.
func (l *PostgresLogger) ForCourse(ctx context.Context, courseID string) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := l.pool.Query(ctx,
		`SELECT user_id, course_id, event_type, data, created_at
		 FROM activity_events WHERE course_id = $1 ORDER BY id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e   Event
			raw []byte
		)
		if err := rows.Scan(&e.UserID, &e.CourseID, &e.Type, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal(raw, &e.Data); err != nil {
			return nil, fmt.Errorf("unmarshal event data: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
