package testutil

import (
	"context"
	"time"

	"famtree/pkg/requestcontext"
)

// FixedTime is the instant stamped by FixedContext.
var FixedTime = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// FixedContext returns a context whose operation time is FixedTime.
// This is what the CLI does when it stamps a batch with one instant.
func FixedContext() context.Context {
	return requestcontext.WithTime(context.Background(), FixedTime)
}

// ActorContext returns a FixedContext attributed to actor.
func ActorContext(actor string) context.Context {
	return requestcontext.WithActor(FixedContext(), actor)
}
