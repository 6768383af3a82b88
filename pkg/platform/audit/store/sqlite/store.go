package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "famtree/pkg/platform/audit"
	txcontext "famtree/pkg/platform/tx"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements audit.Store on the local SQLite database. Appends join
// the transaction carried by ctx, if any.
type Store struct {
	db *sql.DB
}

// New creates a SQLite audit store. The audit_events table must exist.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO audit_events (id, category, ts, subject_id, actor_id, action, request_id, decision, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		string(category),
		event.Timestamp.UTC().Format(timeLayout),
		event.SubjectID,
		event.ActorID,
		event.Action,
		event.RequestID,
		event.Decision,
		event.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]audit.Event, error) {
	return s.list(ctx, `WHERE subject_id = ?`, subjectID)
}

func (s *Store) ListAll(ctx context.Context) ([]audit.Event, error) {
	return s.list(ctx, ``)
}

func (s *Store) list(ctx context.Context, where string, args ...any) ([]audit.Event, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, `
		SELECT category, ts, subject_id, actor_id, action, request_id, decision, reason
		FROM audit_events `+where+` ORDER BY ts, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
			ts       string
		)
		if err := rows.Scan(&category, &ts, &e.SubjectID, &e.ActorID, &e.Action, &e.RequestID, &e.Decision, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
