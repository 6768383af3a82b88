package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "famtree/pkg/platform/audit"
	"famtree/pkg/platform/audit/store/memory"
)

func TestPublisher_StampsAndStores(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := audit.NewPublisher(store)
	ctx := context.Background()

	require.NoError(t, pub.Emit(ctx, audit.Event{
		SubjectID: "1850575",
		Action:    string(audit.EventPersonDeleted),
	}))
	require.NoError(t, pub.Emit(ctx, audit.Event{
		SubjectID: "1850575",
		Action:    string(audit.EventRequestSubmitted),
		Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	events, err := pub.List(ctx, "1850575")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, audit.CategoryOperations, events[1].Category)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(audit.EventRequestSubmitted), all[0].Action, "ordered by timestamp")
}

func TestAuditEvent_UnknownDefaultsToOperations(t *testing.T) {
	assert.Equal(t, audit.CategoryOperations, audit.AuditEvent("something_else").Category())
	assert.Equal(t, audit.CategorySecurity, audit.EventResolveDenied.Category())
}
