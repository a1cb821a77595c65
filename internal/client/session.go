package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"habitsync/internal/apperr"
	"habitsync/internal/event"
	"habitsync/internal/model"
	"habitsync/internal/tracker"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusGaveUp       Status = "gave_up"
)

const globalNoteKey = "global"

type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxAttempts caps connection attempts per cycle; 0 retries forever.
	MaxAttempts uint
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		MaxAttempts:     5,
	}
}

type Options struct {
	BaseURL          string
	HTTPClient       *http.Client
	Backoff          BackoffConfig
	DebounceInterval time.Duration
	// Now overrides the wall clock used to resolve "today".
	Now func() time.Time
}

// Session mirrors one account. The snapshot starts empty, is replaced by a
// full-state fetch on every (re)connect and is patched by pushed events in
// between. Local edits are applied first and reverted if the server rejects
// them.
type Session struct {
	api     *API
	wsURL   string
	origin  string
	backoff BackoffConfig
	now     func() time.Time
	notes   *Debouncer
	logger  *zap.Logger

	mu       sync.Mutex
	snap     *tracker.Snapshot
	calendar tracker.Calendar
	status   Status
	lastErr  error
	conn     *websocket.Conn

	updates   chan struct{}
	reconnect chan struct{}
}

func NewSession(opts Options, logger *zap.Logger) (*Session, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	ws := *base
	switch base.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}
	ws.Path = base.Path + "/ws"

	bo := opts.Backoff
	if bo.InitialInterval <= 0 {
		bo = DefaultBackoff()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		api:       NewAPI(base.String(), opts.HTTPClient),
		wsURL:     ws.String(),
		origin:    base.String(),
		backoff:   bo,
		now:       now,
		logger:    logger,
		snap:      tracker.NewSnapshot(),
		calendar:  tracker.Calendar{Location: time.UTC, Now: now},
		status:    StatusDisconnected,
		updates:   make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
	}
	s.notes = NewDebouncer(opts.DebounceInterval, s.saveNote, s.noteSaveFailed)
	return s, nil
}

func (s *Session) API() *API { return s.api }

// Run keeps the channel connected until ctx is done. After MaxAttempts
// failed attempts the status becomes gave_up and Run waits for Reconnect.
func (s *Session) Run(ctx context.Context) error {
	for {
		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.setStatus(StatusDisconnected, nil)
				return ctx.Err()
			}
			s.setStatus(StatusGaveUp, err)
			s.logger.Warn("Giving up on sync channel", zap.String("url", s.wsURL), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.reconnect:
				s.logger.Info("Manual reconnect requested")
				continue
			}
		}

		err = s.listen(ctx, conn)
		if ctx.Err() != nil {
			s.setStatus(StatusDisconnected, nil)
			return ctx.Err()
		}
		s.setStatus(StatusDisconnected, apperr.ChannelDisconnected(err))
		s.logger.Warn("Sync channel lost", zap.Error(err))
	}
}

// Reconnect drops the current connection, if any, and wakes a session that
// gave up.
func (s *Session) Reconnect() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	select {
	case s.reconnect <- struct{}{}:
	default:
	}
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	select {
	case <-s.reconnect:
	default:
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.backoff.InitialInterval
	b.MaxInterval = s.backoff.MaxInterval
	b.Multiplier = s.backoff.Multiplier
	b.RandomizationFactor = 0

	attempt := 0
	op := func() (*websocket.Conn, error) {
		attempt++
		s.setStatus(StatusConnecting, nil)
		conn, err := s.dial(ctx)
		if err != nil {
			return nil, apperr.ChannelDisconnected(err)
		}
		// Connect first so nothing emitted after the fetch is missed.
		if err := s.Resync(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.backoff.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.setStatus(StatusDisconnected, err)
			s.logger.Warn("Connect attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(s.wsURL, s.origin)
	if err != nil {
		return nil, err
	}
	return cfg.DialContext(ctx)
}

func (s *Session) listen(ctx context.Context, conn *websocket.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.status = StatusConnected
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
	s.logger.Info("Sync channel connected", zap.String("url", s.wsURL))

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	for {
		var frame string
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			return err
		}
		e, err := event.Decode([]byte(frame))
		if err != nil {
			s.logger.Warn("Dropping undecodable event", zap.Error(err))
			continue
		}
		s.apply(e)
	}
}

// Resync replaces the snapshot with a full-state fetch. Note edits still
// waiting in the debouncer are laid back on top.
func (s *Session) Resync(ctx context.Context) error {
	st, err := s.api.State(ctx)
	if err != nil {
		return err
	}
	cal, err := tracker.LoadCalendar(st.Timezone)
	if err != nil {
		s.logger.Warn("Unknown server timezone, using UTC", zap.String("timezone", st.Timezone), zap.Error(err))
		cal = tracker.NewCalendar(time.UTC)
	}
	cal.Now = s.now

	snap := tracker.FromState(st)
	for key, v := range s.notes.PendingAll() {
		if key == globalNoteKey {
			snap.GlobalNote = v
			continue
		}
		snap.DailyNotes[model.DateKey(key)] = v
	}

	s.mu.Lock()
	s.snap = snap
	s.calendar = cal
	s.mu.Unlock()
	s.notify()
	s.logger.Debug("Resynced", zap.Int("habits", len(st.Habits)), zap.Int("days", len(st.HabitLog)))
	return nil
}

func (s *Session) apply(e event.Event) {
	s.mu.Lock()
	s.snap.Apply(e)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Session) setStatus(st Status, err error) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	if err != nil || st == StatusConnected {
		s.lastErr = err
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Updates signals after any change to the snapshot or status. Signals are
// coalesced.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

func (s *Session) Today() model.DateKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendar.Today()
}

// Snapshot returns a copy of the current mirror.
func (s *Session) Snapshot() *tracker.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

func (s *Session) Summary() tracker.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tracker.Summarize(s.snap, s.calendar.Today())
}

func (s *Session) CreateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	created, err := s.api.CreateHabit(ctx, h)
	if err != nil {
		return model.Habit{}, err
	}
	s.apply(event.HabitCreated{Habit: created})
	return created, nil
}

func (s *Session) UpdateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	s.mu.Lock()
	i := s.snap.HabitIndex(h.ID)
	if i < 0 {
		s.mu.Unlock()
		return s.api.UpdateHabit(ctx, h)
	}
	prev := s.snap.Habits[i]
	optimistic := prev
	optimistic.Name, optimistic.Icon, optimistic.Category = h.Name, h.Icon, h.Category
	s.snap.Apply(event.HabitUpdated{Habit: optimistic})
	s.mu.Unlock()
	s.notify()

	updated, err := s.api.UpdateHabit(ctx, h)
	if err != nil {
		s.apply(event.HabitUpdated{Habit: prev})
		return model.Habit{}, err
	}
	s.apply(event.HabitUpdated{Habit: updated})
	return updated, nil
}

func (s *Session) DeleteHabit(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.snap.HabitIndex(id)
	var (
		prev    model.Habit
		entries = make(map[model.DateKey]bool)
	)
	if i >= 0 {
		prev = s.snap.Habits[i]
		for key, day := range s.snap.Log {
			if v, ok := day[id]; ok {
				entries[key] = v
			}
		}
		s.snap.Apply(event.HabitDeleted{ID: id})
	}
	s.mu.Unlock()
	s.notify()

	if err := s.api.DeleteHabit(ctx, id); err != nil {
		if i >= 0 {
			s.mu.Lock()
			s.snap.Apply(event.HabitCreated{Habit: prev})
			for key, v := range entries {
				s.snap.Apply(event.LogUpdated{DateKey: key, HabitID: id, Completed: v})
			}
			s.mu.Unlock()
			s.notify()
		}
		return err
	}
	return nil
}

func (s *Session) SetLog(ctx context.Context, key model.DateKey, habitID string, completed bool) error {
	s.mu.Lock()
	prev, had := s.snap.Log[key][habitID]
	s.snap.Apply(event.LogUpdated{DateKey: key, HabitID: habitID, Completed: completed})
	s.mu.Unlock()
	s.notify()

	if _, err := s.api.SetLog(ctx, key, habitID, completed); err != nil {
		s.mu.Lock()
		// Leave it alone if a pushed event already moved the value.
		if s.snap.Log[key][habitID] == completed {
			s.restoreLog(key, habitID, prev, had)
		}
		s.mu.Unlock()
		s.notify()
		return err
	}
	return nil
}

func (s *Session) restoreLog(key model.DateKey, habitID string, prev, had bool) {
	if had {
		s.snap.Apply(event.LogUpdated{DateKey: key, HabitID: habitID, Completed: prev})
		return
	}
	day := s.snap.Log[key]
	delete(day, habitID)
	if len(day) == 0 {
		delete(s.snap.Log, key)
	}
}

func (s *Session) MarkDayPerfect(ctx context.Context, key model.DateKey) error {
	s.mu.Lock()
	prevDay, hadDay := s.snap.Log[key]
	prevDay = cloneDay(prevDay)
	prevNote := s.snap.DailyNotes[key]
	for _, h := range s.snap.Habits {
		s.snap.Apply(event.LogUpdated{DateKey: key, HabitID: h.ID, Completed: true})
	}
	s.mu.Unlock()
	s.notify()

	day, err := s.api.MarkDayPerfect(ctx, key)
	s.mu.Lock()
	if err != nil {
		if hadDay {
			s.snap.Log[key] = prevDay
		} else {
			delete(s.snap.Log, key)
		}
	} else {
		for id, v := range day.Habits {
			s.snap.Apply(event.LogUpdated{DateKey: key, HabitID: id, Completed: v})
		}
		if day.Note != prevNote {
			s.snap.Apply(event.DailyNoteUpdated{DateKey: key, Note: day.Note})
		}
	}
	s.mu.Unlock()
	s.notify()
	return err
}

func cloneDay(day map[string]bool) map[string]bool {
	if day == nil {
		return nil
	}
	out := make(map[string]bool, len(day))
	for k, v := range day {
		out[k] = v
	}
	return out
}

// EditDailyNote updates the note locally and saves it after the debounce
// interval.
func (s *Session) EditDailyNote(key model.DateKey, note string) error {
	if _, err := model.ParseDateKey(string(key)); err != nil {
		return apperr.Validation("%v", err)
	}
	s.apply(event.DailyNoteUpdated{DateKey: key, Note: note})
	if !s.notes.Submit(string(key), note) {
		return errors.New("session closed")
	}
	return nil
}

func (s *Session) EditGlobalNote(content string) error {
	s.apply(event.GlobalNoteUpdated{Content: content})
	if !s.notes.Submit(globalNoteKey, content) {
		return errors.New("session closed")
	}
	return nil
}

// FlushNotes saves pending note edits immediately.
func (s *Session) FlushNotes() error {
	return s.notes.Flush()
}

func (s *Session) saveNote(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if key == globalNoteKey {
		_, err := s.api.SetGlobalNote(ctx, value)
		return err
	}
	_, err := s.api.SetDailyNote(ctx, model.DateKey(key), value)
	return err
}

// noteSaveFailed reconciles with the store, which drops the rejected edit.
func (s *Session) noteSaveFailed(key string, err error) {
	s.logger.Error("Failed to save note", zap.String("key", key), zap.Error(err))
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Resync(ctx); err != nil {
			s.logger.Warn("Resync after failed note save failed", zap.Error(err))
		}
	}()
}

// Close flushes pending note edits and drops the channel. Cancel the
// context passed to Run to stop reconnecting.
func (s *Session) Close() error {
	err := s.notes.Close()
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return err
}
