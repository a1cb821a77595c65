package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitsync/internal/apperr"
	"habitsync/internal/model"
)

// PostgresDSNEnv names a disposable database; its tables are truncated
// before every test.
const PostgresDSNEnv = "HABITSYNC_PG_DSN"

// forEachStore runs fn against a fresh SQLite store and, when
// HABITSYNC_PG_DSN is set, against PostgreSQL.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) {
		store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "habits.db"), zap.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		fn(t, store)
	})
	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv(PostgresDSNEnv)
		if dsn == "" {
			t.Skipf("%s not set", PostgresDSNEnv)
		}
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		store := NewPostgresStore(pool, zap.NewNop())
		t.Cleanup(func() { _ = store.Close() })
		require.NoError(t, store.Migrate(ctx))
		_, err = pool.Exec(ctx, `TRUNCATE habits, habit_logs, daily_notes, global_notes RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		fn(t, store)
	})
}

func TestStore_HabitLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		created, err := store.CreateHabit(ctx, model.Habit{ID: "a-read", Name: "  Read  "})
		require.NoError(t, err)
		assert.Equal(t, "Read", created.Name)
		assert.Equal(t, model.DefaultIcon, created.Icon)
		assert.Equal(t, model.DefaultCategory, created.Category)
		assert.False(t, created.CreatedAt.IsZero())

		_, err = store.CreateHabit(ctx, model.Habit{ID: "a-read", Name: "Again"})
		assert.ErrorIs(t, err, apperr.ErrConflict)

		updated, err := store.UpdateHabit(ctx, model.Habit{ID: "a-read", Name: "Read 20 pages", Icon: "📚", Category: "Mind"})
		require.NoError(t, err)
		assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
		assert.Equal(t, "Mind", updated.Category)

		got, err := store.GetHabit(ctx, "a-read")
		require.NoError(t, err)
		assert.Equal(t, "Read 20 pages", got.Name)

		_, err = store.UpdateHabit(ctx, model.Habit{ID: "missing", Name: "x"})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = store.GetHabit(ctx, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestStore_DeleteCascadesLogs(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		for _, id := range []string{"a", "b"} {
			_, err := store.CreateHabit(ctx, model.Habit{ID: id, Name: id})
			require.NoError(t, err)
		}
		for _, e := range []model.LogEntry{
			{DateKey: "2026-10-16", HabitID: "a", Completed: true},
			{DateKey: "2026-10-17", HabitID: "a", Completed: true},
			{DateKey: "2026-10-17", HabitID: "b", Completed: true},
		} {
			_, err := store.UpsertLog(ctx, e)
			require.NoError(t, err)
		}

		require.NoError(t, store.DeleteHabit(ctx, "a"))
		assert.ErrorIs(t, store.DeleteHabit(ctx, "a"), apperr.ErrNotFound)

		entries, err := store.GetLogRange(ctx, "2026-10-01", "2026-10-31")
		require.NoError(t, err)
		assert.Equal(t, []model.LogEntry{{DateKey: "2026-10-17", HabitID: "b", Completed: true}}, entries)

		habits, err := store.ListHabits(ctx)
		require.NoError(t, err)
		require.Len(t, habits, 1)
		assert.Equal(t, "b", habits[0].ID)
	})
}

func TestStore_UpsertLog(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		_, err := store.CreateHabit(ctx, model.Habit{ID: "a", Name: "A"})
		require.NoError(t, err)

		_, err = store.UpsertLog(ctx, model.LogEntry{DateKey: "2026-10-17", HabitID: "a", Completed: true})
		require.NoError(t, err)
		_, err = store.UpsertLog(ctx, model.LogEntry{DateKey: "2026-10-17", HabitID: "a", Completed: false})
		require.NoError(t, err)

		entries, err := store.GetLogRange(ctx, "2026-10-17", "2026-10-17")
		require.NoError(t, err)
		assert.Equal(t, []model.LogEntry{{DateKey: "2026-10-17", HabitID: "a", Completed: false}}, entries)

		_, err = store.UpsertLog(ctx, model.LogEntry{DateKey: "2026-10-17", HabitID: "ghost", Completed: true})
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		outside, err := store.GetLogRange(ctx, "2026-10-18", "2026-10-31")
		require.NoError(t, err)
		assert.Empty(t, outside)
	})
}

func TestStore_Notes(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		empty, err := store.GetDailyNote(ctx, "2026-10-17")
		require.NoError(t, err)
		assert.Equal(t, "", empty.Note)

		_, err = store.UpsertDailyNote(ctx, "2026-10-17", "long run")
		require.NoError(t, err)
		_, err = store.UpsertDailyNote(ctx, "2026-10-17", "")
		require.NoError(t, err)
		_, err = store.UpsertDailyNote(ctx, "2026-10-15", "rest day")
		require.NoError(t, err)

		note, err := store.GetDailyNote(ctx, "2026-10-17")
		require.NoError(t, err)
		assert.Equal(t, "", note.Note)

		notes, err := store.GetDailyNotesRange(ctx, "2026-10-01", "2026-10-31")
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, model.DateKey("2026-10-15"), notes[0].DateKey)

		global, err := store.GetGlobalNote(ctx)
		require.NoError(t, err)
		assert.Equal(t, "", global.Content)

		_, err = store.UpsertGlobalNote(ctx, "quarter goals")
		require.NoError(t, err)
		_, err = store.UpsertGlobalNote(ctx, "")
		require.NoError(t, err)
		global, err = store.GetGlobalNote(ctx)
		require.NoError(t, err)
		assert.Equal(t, "", global.Content)
		assert.False(t, global.UpdatedAt.IsZero())
	})
}

func TestStore_Stats(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		_, err := store.CreateHabit(ctx, model.Habit{ID: "a", Name: "A"})
		require.NoError(t, err)
		_, err = store.UpsertLog(ctx, model.LogEntry{DateKey: "2026-10-16", HabitID: "a", Completed: true})
		require.NoError(t, err)
		_, err = store.UpsertLog(ctx, model.LogEntry{DateKey: "2026-10-17", HabitID: "a", Completed: false})
		require.NoError(t, err)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.StoreStats{Habits: 1, CompletedLogs: 1, LoggedDays: 2}, stats)
		assert.NoError(t, store.Ping(ctx))
	})
}
