// Package tracker is the aggregation engine: pure functions that derive
// progress, streaks and milestones from a Snapshot of habits and a sparse
// date-keyed log. Nothing here performs I/O or reads the wall clock.
package tracker

import (
	"sort"

	"habitsync/internal/event"
	"habitsync/internal/model"
)

// Snapshot is one session's in-memory copy of the account. Log is sparse: a
// missing day or habit means "not logged", which scores as false.
type Snapshot struct {
	Habits     []model.Habit
	Log        map[model.DateKey]map[string]bool
	DailyNotes map[model.DateKey]string
	GlobalNote string
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Log:        make(map[model.DateKey]map[string]bool),
		DailyNotes: make(map[model.DateKey]string),
	}
}

// FromEntries builds a snapshot from store reads.
func FromEntries(habits []model.Habit, entries []model.LogEntry, notes []model.DailyNote, global string) *Snapshot {
	s := NewSnapshot()
	s.Habits = append(s.Habits, habits...)
	sortHabits(s.Habits)
	for _, e := range entries {
		s.setLog(e.DateKey, e.HabitID, e.Completed)
	}
	for _, n := range notes {
		s.DailyNotes[n.DateKey] = n.Note
	}
	s.GlobalNote = global
	return s
}

// Clone returns a deep copy, used for optimistic edits that may be reverted.
func (s *Snapshot) Clone() *Snapshot {
	c := NewSnapshot()
	c.Habits = append(c.Habits, s.Habits...)
	for k, day := range s.Log {
		m := make(map[string]bool, len(day))
		for id, v := range day {
			m[id] = v
		}
		c.Log[k] = m
	}
	for k, v := range s.DailyNotes {
		c.DailyNotes[k] = v
	}
	c.GlobalNote = s.GlobalNote
	return c
}

func (s *Snapshot) HabitIndex(id string) int {
	for i, h := range s.Habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

func (s *Snapshot) setLog(key model.DateKey, habitID string, completed bool) {
	if s.Log == nil {
		s.Log = make(map[model.DateKey]map[string]bool)
	}
	day, ok := s.Log[key]
	if !ok {
		day = make(map[string]bool)
		s.Log[key] = day
	}
	day[habitID] = completed
}

// Apply mutates the snapshot in place with a change event. There is no merge
// logic: the last event applied wins.
func (s *Snapshot) Apply(e event.Event) {
	e.Dispatch(s)
}

func (s *Snapshot) HabitCreated(e event.HabitCreated) {
	s.upsertHabit(e.Habit)
}

func (s *Snapshot) HabitUpdated(e event.HabitUpdated) {
	s.upsertHabit(e.Habit)
}

func (s *Snapshot) HabitDeleted(e event.HabitDeleted) {
	if i := s.HabitIndex(e.ID); i >= 0 {
		s.Habits = append(s.Habits[:i], s.Habits[i+1:]...)
	}
	for _, day := range s.Log {
		delete(day, e.ID)
	}
}

func (s *Snapshot) LogUpdated(e event.LogUpdated) {
	s.setLog(e.DateKey, e.HabitID, e.Completed)
}

func (s *Snapshot) DailyNoteUpdated(e event.DailyNoteUpdated) {
	if s.DailyNotes == nil {
		s.DailyNotes = make(map[model.DateKey]string)
	}
	s.DailyNotes[e.DateKey] = e.Note
}

func (s *Snapshot) GlobalNoteUpdated(e event.GlobalNoteUpdated) {
	s.GlobalNote = e.Content
}

func (s *Snapshot) upsertHabit(h model.Habit) {
	if i := s.HabitIndex(h.ID); i >= 0 {
		s.Habits[i] = h
		return
	}
	s.Habits = append(s.Habits, h)
	sortHabits(s.Habits)
}

func sortHabits(habits []model.Habit) {
	sort.SliceStable(habits, func(i, j int) bool {
		return habits[i].CreatedAt.Before(habits[j].CreatedAt)
	})
}

// FromState builds a snapshot from a full-state payload.
func FromState(st model.State) *Snapshot {
	s := NewSnapshot()
	s.Habits = append(s.Habits, st.Habits...)
	sortHabits(s.Habits)
	for key, day := range st.HabitLog {
		for id, v := range day.Habits {
			s.setLog(key, id, v)
		}
		if day.Note != "" {
			s.DailyNotes[key] = day.Note
		}
	}
	s.GlobalNote = st.Notes
	return s
}

var _ event.Handler = (*Snapshot)(nil)
