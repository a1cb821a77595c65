package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitsync/internal/apperr"
	"habitsync/internal/hub"
	"habitsync/internal/httpserver"
	"habitsync/internal/model"
	"habitsync/internal/repository"
	"habitsync/internal/service"
	"habitsync/internal/tracker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type server struct {
	*httptest.Server
	gateway *service.Gateway
	hub     *hub.Hub
	down    atomic.Bool
}

func newServer(t *testing.T) *server {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "habits.db"), zap.NewNop())
	require.NoError(t, err)

	cal := tracker.Calendar{Location: time.UTC, Now: func() time.Time { return fixedNow }}
	h := hub.New(16, zap.NewNop())
	gw := service.NewGateway(store, h, cal, zap.NewNop(), service.WithHistoryDays(31))
	router := httpserver.NewRouter(gw, h, zap.NewNop())

	s := &server{gateway: gw, hub: h}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.down.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(func() {
		h.Close()
		s.Close()
		_ = store.Close()
	})
	return s
}

func newSession(t *testing.T, srv *server) *Session {
	t.Helper()
	s, err := NewSession(Options{
		BaseURL: srv.URL,
		Backoff: BackoffConfig{
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2,
			MaxAttempts:     3,
		},
		DebounceInterval: 20 * time.Millisecond,
		Now:              func() time.Time { return fixedNow },
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitStatus(t *testing.T, s *Session, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, _ := s.Status()
		return st == want
	}, 3*time.Second, 5*time.Millisecond, "status %s", want)
}

func TestNewSession_RejectsBadURL(t *testing.T) {
	_, err := NewSession(Options{BaseURL: "ftp://example.com"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSession_ResyncsThenFollowsEvents(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	_, err := srv.gateway.CreateHabit(ctx, service.HabitInput{ID: "a", Name: "A"})
	require.NoError(t, err)

	s := newSession(t, srv)
	assert.Empty(t, s.Snapshot().Habits)
	run(t, s)
	waitStatus(t, s, StatusConnected)
	require.Eventually(t, func() bool { return srv.hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.Len(t, s.Snapshot().Habits, 1)
	assert.Equal(t, model.DateKey("2026-10-17"), s.Today())

	_, err = srv.gateway.SetLog(ctx, "2026-10-17", "a", true)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Snapshot().Log["2026-10-17"]["a"]
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.Summary().CurrentStreak)

	_, err = srv.gateway.CreateHabit(ctx, service.HabitInput{ID: "b", Name: "B"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.Snapshot().Habits) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 50, s.Summary().TodayProgress.Percent)
}

func TestSession_TwoSessionsConvergeOnStoredValue(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	_, err := srv.gateway.CreateHabit(ctx, service.HabitInput{ID: "a", Name: "A"})
	require.NoError(t, err)

	s1, s2 := newSession(t, srv), newSession(t, srv)
	run(t, s1)
	run(t, s2)
	waitStatus(t, s1, StatusConnected)
	waitStatus(t, s2, StatusConnected)
	require.Eventually(t, func() bool { return srv.hub.Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s1.SetLog(ctx, "2026-10-17", "a", true))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s2.SetLog(ctx, "2026-10-17", "a", false))
		}()
		wg.Wait()

		day, err := srv.gateway.GetDay(ctx, "2026-10-17")
		require.NoError(t, err)
		want := day["a"]
		require.Eventually(t, func() bool {
			return s1.Snapshot().Log["2026-10-17"]["a"] == want &&
				s2.Snapshot().Log["2026-10-17"]["a"] == want
		}, 2*time.Second, 5*time.Millisecond, "round %d: sessions converge on %v", i, want)
	}
}

func TestSession_GivesUpThenReconnectsOnDemand(t *testing.T) {
	srv := newServer(t)
	srv.down.Store(true)

	s := newSession(t, srv)
	run(t, s)
	waitStatus(t, s, StatusGaveUp)
	_, err := s.Status()
	assert.Error(t, err)

	_, err = srv.gateway.CreateHabit(context.Background(), service.HabitInput{ID: "late", Name: "Late"})
	require.NoError(t, err)

	srv.down.Store(false)
	s.Reconnect()
	waitStatus(t, s, StatusConnected)
	habits := s.Snapshot().Habits
	require.Len(t, habits, 1)
	assert.Equal(t, "late", habits[0].ID)
}

func TestSession_OptimisticEditsRevertOnFailure(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	_, err := srv.gateway.CreateHabit(ctx, service.HabitInput{ID: "a", Name: "A"})
	require.NoError(t, err)

	s := newSession(t, srv)
	require.NoError(t, s.Resync(ctx))

	require.NoError(t, s.SetLog(ctx, "2026-10-16", "a", true))
	assert.True(t, s.Snapshot().Log["2026-10-16"]["a"])

	err = s.SetLog(ctx, "2026-10-16", "ghost", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, present := s.Snapshot().Log["2026-10-16"]["ghost"]
	assert.False(t, present)

	_, err = s.UpdateHabit(ctx, model.Habit{ID: "a", Name: " "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, "A", s.Snapshot().Habits[0].Name)

	srv.down.Store(true)
	err = s.DeleteHabit(ctx, "a")
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	snap := s.Snapshot()
	require.Len(t, snap.Habits, 1)
	assert.True(t, snap.Log["2026-10-16"]["a"])

	err = s.MarkDayPerfect(ctx, "2026-10-17")
	assert.Error(t, err)
	assert.False(t, s.Snapshot().Log["2026-10-17"]["a"])

	srv.down.Store(false)
	require.NoError(t, s.MarkDayPerfect(ctx, "2026-10-17"))
	snap = s.Snapshot()
	assert.True(t, snap.Log["2026-10-17"]["a"])
	assert.Equal(t, service.PerfectDayNote, snap.DailyNotes["2026-10-17"])
}

func TestSession_DebouncedNotesReachTheStore(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	s := newSession(t, srv)

	require.NoError(t, s.EditDailyNote("2026-10-17", "r"))
	require.NoError(t, s.EditDailyNote("2026-10-17", "ran 5k"))
	assert.Equal(t, "ran 5k", s.Snapshot().DailyNotes["2026-10-17"])
	assert.ErrorIs(t, s.EditDailyNote("17-10-2026", "x"), apperr.ErrValidation)

	require.Eventually(t, func() bool {
		n, err := srv.gateway.GetDailyNote(ctx, "2026-10-17")
		return err == nil && n.Note == "ran 5k"
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.EditGlobalNote("final"))
	require.NoError(t, s.Close())
	n, err := srv.gateway.GetGlobalNote(ctx)
	require.NoError(t, err)
	assert.Equal(t, "final", n.Content)
}

func TestAPI_DecodesErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/habits":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"CONFLICT","message":"habit \"a\" already exists"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, nil)
	_, err := api.CreateHabit(context.Background(), model.Habit{ID: "a", Name: "A"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "already exists")

	_, err = api.Stats(context.Background())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	srv.Close()
	_, err = api.State(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}
