package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/garage-core/internal/door"
	"github.com/nerrad567/garage-core/internal/testutil"
)

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.InsertUser(t, db, "usr-1", "alice")
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	def := &Definition{UserID: "usr-1", Action: door.ActionOpen, CronExpr: "0 7 * * *", Enabled: true}
	require.NoError(t, repo.Create(ctx, def))
	assert.Regexp(t, `^sch-[0-9a-f]{8}$`, def.ID)
	assert.False(t, def.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def.UserID, got.UserID)
	assert.Equal(t, door.ActionOpen, got.Action)
	assert.Equal(t, "0 7 * * *", got.CronExpr)
	assert.True(t, got.Enabled)
	assert.True(t, def.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.GetByID(ctx, "sch-missing")
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestSQLiteRepository_Lists(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.InsertUser(t, db, "usr-1", "alice")
	testutil.InsertUser(t, db, "usr-2", "bob")
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	defs := []*Definition{
		{ID: "sch-a", UserID: "usr-1", Action: door.ActionOpen, CronExpr: "0 7 * * *", Enabled: true, CreatedAt: base},
		{ID: "sch-b", UserID: "usr-1", Action: door.ActionClose, CronExpr: "0 22 * * *", Enabled: false, CreatedAt: base.Add(time.Minute)},
		{ID: "sch-c", UserID: "usr-2", Action: door.ActionStop, CronExpr: "*/5 * * * *", Enabled: true, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, d := range defs {
		require.NoError(t, repo.Create(ctx, d))
	}

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	assert.Equal(t, "sch-a", enabled[0].ID)
	assert.Equal(t, "sch-c", enabled[1].ID)

	mine, err := repo.ListByUser(ctx, "usr-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "sch-b", mine[0].ID, "newest first")
	assert.Equal(t, "sch-a", mine[1].ID)

	none, err := repo.ListByUser(ctx, "usr-nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLiteRepository_DeleteOwned(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.InsertUser(t, db, "usr-1", "alice")
	testutil.InsertUser(t, db, "usr-2", "bob")
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	def := &Definition{UserID: "usr-1", Action: door.ActionOpen, CronExpr: "0 7 * * *", Enabled: true}
	require.NoError(t, repo.Create(ctx, def))

	assert.ErrorIs(t, repo.DeleteOwned(ctx, def.ID, "usr-2"), ErrScheduleNotFound)
	_, err := repo.GetByID(ctx, def.ID)
	require.NoError(t, err, "another user's delete must not remove it")

	require.NoError(t, repo.DeleteOwned(ctx, def.ID, "usr-1"))
	assert.ErrorIs(t, repo.DeleteOwned(ctx, def.ID, "usr-1"), ErrScheduleNotFound)
}
