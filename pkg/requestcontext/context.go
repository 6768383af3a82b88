// Package requestcontext provides context accessors for operation-scoped
// values shared by the service facade, the workflow and the CLI.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	correlationID := requestcontext.CorrelationID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActor(ctx, "1850575")
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context key types (unexported for encapsulation).
type (
	actorKey         struct{}
	correlationIDKey struct{}
	requestTimeKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActor         = actorKey{}
	ContextKeyCorrelationID = correlationIDKey{}
	ContextKeyRequestTime   = requestTimeKey{}
)

// Actor retrieves the identity of the person performing the operation.
// Returns an empty string when the operation is not attributed, e.g. a CLI
// maintenance run.
func Actor(ctx context.Context) string {
	if a, ok := ctx.Value(ContextKeyActor).(string); ok {
		return a
	}
	return ""
}

// WithActor injects the acting person's identity into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// CorrelationID retrieves the correlation ID used to tie log lines, audit
// events and notifications of one operation together.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID injects a correlation ID into the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, id)
}

// EnsureCorrelationID returns ctx unchanged when it already carries a
// correlation ID, otherwise a child context with a fresh one.
func EnsureCorrelationID(ctx context.Context) context.Context {
	if CorrelationID(ctx) != "" {
		return ctx
	}
	return WithCorrelationID(ctx, uuid.NewString())
}

// Now retrieves the operation-scoped time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests asserting on timestamps
//   - CLI commands that stamp a whole batch with one instant
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
