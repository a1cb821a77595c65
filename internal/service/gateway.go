package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"habitsync/internal/apperr"
	"habitsync/internal/event"
	"habitsync/internal/model"
	"habitsync/internal/repository"
	"habitsync/internal/tracker"
	"habitsync/pkg/circuitbreaker"
	"habitsync/pkg/logger"
	"habitsync/pkg/metrics"
)

// PerfectDayNote is written by MarkDayPerfect when the day has no note yet.
const PerfectDayNote = "Marked as perfect day."

const DefaultHistoryDays = 365

type HabitInput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Category string `json:"category"`
}

// Gateway is the only writer of the store. Every successful mutation emits
// exactly one Change Event; failed ones emit nothing. Mutations run one at a
// time, so events leave in the order the store committed them.
type Gateway struct {
	mu sync.Mutex

	store       repository.Store
	publisher   Publisher
	calendar    tracker.Calendar
	breaker     *circuitbreaker.CircuitBreaker
	historyDays int
	newID       func() string
	logger      *zap.Logger
}

type Option func(*Gateway)

func WithHistoryDays(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.historyDays = n
		}
	}
}

func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(g *Gateway) { g.breaker = cb }
}

func WithIDGenerator(fn func() string) Option {
	return func(g *Gateway) { g.newID = fn }
}

func NewGateway(store repository.Store, publisher Publisher, calendar tracker.Calendar, logger *zap.Logger, opts ...Option) *Gateway {
	if publisher == nil {
		publisher = Publishers()
	}
	g := &Gateway{
		store:       store,
		publisher:   publisher,
		calendar:    calendar,
		historyDays: DefaultHistoryDays,
		newID:       uuid.NewString,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.breaker == nil {
		cfg := circuitbreaker.DefaultConfig()
		cfg.IsFailure = storeFailure
		g.breaker = circuitbreaker.NewCircuitBreaker(cfg)
	}
	return g
}

func (g *Gateway) Calendar() tracker.Calendar {
	return g.calendar
}

func (g *Gateway) ListHabits(ctx context.Context) ([]model.Habit, error) {
	var habits []model.Habit
	err := g.guard(func() (err error) {
		habits, err = g.store.ListHabits(ctx)
		return err
	})
	return habits, err
}

func (g *Gateway) CreateHabit(ctx context.Context, in HabitInput) (model.Habit, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Habit{}, g.fail(ctx, "create_habit", apperr.Validation("habit name is required"))
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = g.newID()
	}

	var created model.Habit
	err := g.commit(ctx, "create_habit", func() (event.Event, error) {
		h, err := g.store.CreateHabit(ctx, model.Habit{ID: id, Name: name, Icon: in.Icon, Category: in.Category})
		created = h
		return event.HabitCreated{Habit: h}, err
	})
	if err != nil {
		return model.Habit{}, err
	}
	return created, nil
}

func (g *Gateway) UpdateHabit(ctx context.Context, in HabitInput) (model.Habit, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return model.Habit{}, g.fail(ctx, "update_habit", apperr.Validation("habit id is required"))
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Habit{}, g.fail(ctx, "update_habit", apperr.Validation("habit name is required"))
	}

	var updated model.Habit
	err := g.commit(ctx, "update_habit", func() (event.Event, error) {
		h, err := g.store.UpdateHabit(ctx, model.Habit{ID: id, Name: name, Icon: in.Icon, Category: in.Category})
		updated = h
		return event.HabitUpdated{Habit: h}, err
	})
	if err != nil {
		return model.Habit{}, err
	}
	return updated, nil
}

func (g *Gateway) DeleteHabit(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return g.fail(ctx, "delete_habit", apperr.Validation("habit id is required"))
	}
	return g.commit(ctx, "delete_habit", func() (event.Event, error) {
		return event.HabitDeleted{ID: id}, g.store.DeleteHabit(ctx, id)
	})
}

func (g *Gateway) SetLog(ctx context.Context, dateKey, habitID string, completed bool) (model.LogEntry, error) {
	key, err := parseKey(dateKey)
	if err != nil {
		return model.LogEntry{}, g.fail(ctx, "set_log", err)
	}
	habitID = strings.TrimSpace(habitID)
	if habitID == "" {
		return model.LogEntry{}, g.fail(ctx, "set_log", apperr.Validation("habit id is required"))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setLogLocked(ctx, model.LogEntry{DateKey: key, HabitID: habitID, Completed: completed})
}

func (g *Gateway) setLogLocked(ctx context.Context, in model.LogEntry) (model.LogEntry, error) {
	var entry model.LogEntry
	err := g.commitLocked(ctx, "set_log", func() (event.Event, error) {
		e, err := g.store.UpsertLog(ctx, in)
		entry = e
		return event.LogUpdated{DateKey: e.DateKey, HabitID: e.HabitID, Completed: e.Completed}, err
	})
	if err != nil {
		return model.LogEntry{}, err
	}
	return entry, nil
}

func (g *Gateway) SetDailyNote(ctx context.Context, dateKey, note string) (model.DailyNote, error) {
	key, err := parseKey(dateKey)
	if err != nil {
		return model.DailyNote{}, g.fail(ctx, "set_daily_note", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.setDailyNoteLocked(ctx, key, note)
}

func (g *Gateway) setDailyNoteLocked(ctx context.Context, key model.DateKey, note string) (model.DailyNote, error) {
	var saved model.DailyNote
	err := g.commitLocked(ctx, "set_daily_note", func() (event.Event, error) {
		n, err := g.store.UpsertDailyNote(ctx, key, note)
		saved = n
		return event.DailyNoteUpdated{DateKey: n.DateKey, Note: n.Note}, err
	})
	if err != nil {
		return model.DailyNote{}, err
	}
	return saved, nil
}

func (g *Gateway) SetGlobalNote(ctx context.Context, content string) (model.GlobalNote, error) {
	var saved model.GlobalNote
	err := g.commit(ctx, "set_global_note", func() (event.Event, error) {
		n, err := g.store.UpsertGlobalNote(ctx, content)
		saved = n
		return event.GlobalNoteUpdated{Content: n.Content}, err
	})
	if err != nil {
		return model.GlobalNote{}, err
	}
	return saved, nil
}

// MarkDayPerfect completes every habit on the day and leaves a note when the
// day has none. Each write emits its own event; the first failure stops the
// sequence and is returned. The whole sequence holds the writer lock.
func (g *Gateway) MarkDayPerfect(ctx context.Context, dateKey string) (model.DayEntry, error) {
	key, err := parseKey(dateKey)
	if err != nil {
		return model.DayEntry{}, g.fail(ctx, "mark_day_perfect", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	habits, err := g.ListHabits(ctx)
	if err != nil {
		return model.DayEntry{}, g.fail(ctx, "mark_day_perfect", err)
	}

	day := model.DayEntry{Habits: make(map[string]bool, len(habits))}
	for _, h := range habits {
		if _, err := g.setLogLocked(ctx, model.LogEntry{DateKey: key, HabitID: h.ID, Completed: true}); err != nil {
			return model.DayEntry{}, err
		}
		day.Habits[h.ID] = true
	}

	var existing model.DailyNote
	err = g.guard(func() (err error) {
		existing, err = g.store.GetDailyNote(ctx, key)
		return err
	})
	if err != nil {
		return model.DayEntry{}, g.fail(ctx, "mark_day_perfect", err)
	}
	day.Note = existing.Note
	if strings.TrimSpace(existing.Note) == "" {
		saved, err := g.setDailyNoteLocked(ctx, key, PerfectDayNote)
		if err != nil {
			return model.DayEntry{}, err
		}
		day.Note = saved.Note
	}

	logger.WithTrace(ctx, g.logger).Info("Day marked perfect",
		zap.Stringer("date_key", key),
		zap.Int("habits", len(habits)),
	)
	return day, nil
}

func (g *Gateway) GetLogRange(ctx context.Context, startDate, endDate string) ([]model.LogEntry, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	var entries []model.LogEntry
	err = g.guard(func() (err error) {
		entries, err = g.store.GetLogRange(ctx, start, end)
		return err
	})
	return entries, err
}

// GetDay returns the recorded flags of one day; unlogged habits are absent.
func (g *Gateway) GetDay(ctx context.Context, dateKey string) (map[string]bool, error) {
	key, err := parseKey(dateKey)
	if err != nil {
		return nil, err
	}
	entries, err := g.GetLogRange(ctx, string(key), string(key))
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		out[e.HabitID] = e.Completed
	}
	return out, nil
}

func (g *Gateway) GetDailyNote(ctx context.Context, dateKey string) (model.DailyNote, error) {
	key, err := parseKey(dateKey)
	if err != nil {
		return model.DailyNote{}, err
	}
	var n model.DailyNote
	err = g.guard(func() (err error) {
		n, err = g.store.GetDailyNote(ctx, key)
		return err
	})
	return n, err
}

func (g *Gateway) GetGlobalNote(ctx context.Context) (model.GlobalNote, error) {
	var n model.GlobalNote
	err := g.guard(func() (err error) {
		n, err = g.store.GetGlobalNote(ctx)
		return err
	})
	return n, err
}

// Snapshot loads everything between start and end into an aggregation
// snapshot.
func (g *Gateway) Snapshot(ctx context.Context, start, end model.DateKey) (*tracker.Snapshot, error) {
	var (
		habits  []model.Habit
		entries []model.LogEntry
		notes   []model.DailyNote
		global  model.GlobalNote
	)
	err := g.guard(func() (err error) {
		if habits, err = g.store.ListHabits(ctx); err != nil {
			return err
		}
		if entries, err = g.store.GetLogRange(ctx, start, end); err != nil {
			return err
		}
		if notes, err = g.store.GetDailyNotesRange(ctx, start, end); err != nil {
			return err
		}
		global, err = g.store.GetGlobalNote(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tracker.FromEntries(habits, entries, notes, global.Content), nil
}

// State is the full-state fetch: the trailing history window ending today,
// every day materialized.
func (g *Gateway) State(ctx context.Context) (model.State, error) {
	today := g.calendar.Today()
	keys := tracker.Trailing(today, g.historyDays)
	snap, err := g.Snapshot(ctx, keys[0], today)
	if err != nil {
		logger.WithTrace(ctx, g.logger).Error("Failed to load state", zap.Error(err))
		return model.State{}, err
	}

	st := model.State{
		Habits:    snap.Habits,
		HabitLog:  tracker.Materialize(snap, keys),
		Notes:     snap.GlobalNote,
		Timezone:  g.calendar.Location.String(),
		Today:     today,
		LastSaved: time.Now().UTC(),
	}
	logger.WithTrace(ctx, g.logger).Debug("State requested",
		zap.Int("habits", len(st.Habits)),
		zap.Int("days", len(st.HabitLog)),
	)
	return st, nil
}

// Stats summarizes the current year (and the week around today, which may
// reach into the neighbouring year).
func (g *Gateway) Stats(ctx context.Context) (tracker.Summary, error) {
	today := g.calendar.Today()
	start, end := statsWindow(today)
	snap, err := g.Snapshot(ctx, start, end)
	if err != nil {
		return tracker.Summary{}, err
	}
	return tracker.Summarize(snap, today), nil
}

func (g *Gateway) StoreStats(ctx context.Context) (model.StoreStats, error) {
	var st model.StoreStats
	err := g.guard(func() (err error) {
		st, err = g.store.Stats(ctx)
		return err
	})
	return st, err
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

func statsWindow(today model.DateKey) (model.DateKey, model.DateKey) {
	year := tracker.MonthOfYear(today.Time(time.UTC).Year(), time.January)[0]
	dec := tracker.MonthOfYear(today.Time(time.UTC).Year(), time.December)
	start, end := year, dec[len(dec)-1]
	week := tracker.Week(today)
	if week[0] < start {
		start = week[0]
	}
	if week[6] > end {
		end = week[6]
	}
	return start, end
}

// guard runs fn through the breaker. An open breaker reads as an unavailable
// store.
func (g *Gateway) guard(fn func() error) error {
	err := g.breaker.Execute(fn)
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return apperr.StoreUnavailable(err)
	}
	return err
}

// commit runs write under the writer lock and emits its event before the
// lock is released. The event is ignored when write fails.
func (g *Gateway) commit(ctx context.Context, op string, write func() (event.Event, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.commitLocked(ctx, op, write)
}

func (g *Gateway) commitLocked(ctx context.Context, op string, write func() (event.Event, error)) error {
	var e event.Event
	err := g.guard(func() (err error) {
		e, err = write()
		return err
	})
	if err != nil {
		return g.fail(ctx, op, err)
	}
	g.emit(ctx, op, e)
	return nil
}

func (g *Gateway) emit(ctx context.Context, op string, e event.Event) {
	metrics.IncrementMutation(op, "ok")
	g.publisher.Publish(ctx, e)
	logger.WithTrace(ctx, g.logger).Debug("Change event emitted",
		zap.String("operation", op),
		zap.String("type", string(e.Type())),
	)
}

// fail records a failed mutation and returns err unchanged.
func (g *Gateway) fail(ctx context.Context, op string, err error) error {
	kind := apperr.KindOf(err)
	metrics.IncrementMutation(op, kind.String())
	log := logger.WithTrace(ctx, g.logger)
	switch kind {
	case apperr.KindNotFound, apperr.KindConflict, apperr.KindValidation:
		log.Info("Mutation rejected", zap.String("operation", op), zap.Error(err))
	default:
		log.Error("Mutation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

// storeFailure counts unavailable-store errors toward the breaker, except
// the ones caused by the caller cancelling its own request.
func storeFailure(err error) bool {
	return errors.Is(err, apperr.ErrStoreUnavailable) && !errors.Is(err, context.Canceled)
}

func parseKey(s string) (model.DateKey, error) {
	key, err := model.ParseDateKey(strings.TrimSpace(s))
	if err != nil {
		return "", apperr.Validation("%v", err)
	}
	return key, nil
}

func parseRange(startDate, endDate string) (model.DateKey, model.DateKey, error) {
	start, err := parseKey(startDate)
	if err != nil {
		return "", "", err
	}
	end, err := parseKey(endDate)
	if err != nil {
		return "", "", err
	}
	if end < start {
		return "", "", apperr.Validation("endDate %s is before startDate %s", end, start)
	}
	return start, end, nil
}
