package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	platformsqlite "famtree/internal/platform/sqlite"
	audit "famtree/pkg/platform/audit"
	auditsqlite "famtree/pkg/platform/audit/store/sqlite"
	txcontext "famtree/pkg/platform/tx"
)

func TestStore_AppendAndList(t *testing.T) {
	ctx := context.Background()
	db, err := platformsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	store := auditsqlite.New(db)
	pub := audit.NewPublisher(store)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Emit(ctx, audit.Event{SubjectID: "1001", Action: string(audit.EventPersonRegistered), Timestamp: at}))
	require.NoError(t, pub.Emit(ctx, audit.Event{SubjectID: "1002", Action: string(audit.EventResolveDenied), ActorID: "1001", Timestamp: at.Add(time.Minute)}))

	mine, err := pub.List(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, audit.CategoryCompliance, mine[0].Category)
	assert.True(t, at.Equal(mine[0].Timestamp))

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, audit.CategorySecurity, all[1].Category)
	assert.Equal(t, "1001", all[1].ActorID)
}

func TestStore_AppendJoinsTransaction(t *testing.T) {
	ctx := context.Background()
	db, err := platformsqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	store := auditsqlite.New(db)

	boom := errors.New("boom")
	err = txcontext.Run(ctx, db, func(ctx context.Context) error {
		require.NoError(t, store.Append(ctx, audit.Event{SubjectID: "1001", Action: "x", Timestamp: time.Now()}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "rolled back with the transaction")
}
