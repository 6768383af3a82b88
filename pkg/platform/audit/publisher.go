package audit

import (
	"context"
	"time"
)

// Store persists audit events. It is append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectID string) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
}

// Publisher captures structured audit events. It stamps missing timestamps
// and categories, then hands events to the store so tests can swap sinks.
type Publisher struct {
	store Store
	now   func() time.Time
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, now: time.Now}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, subjectID string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subjectID)
}
