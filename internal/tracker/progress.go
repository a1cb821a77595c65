package tracker

import (
	"habitsync/internal/model"
)

// DayLog is a materialized day: every current habit has an explicit value.
type DayLog struct {
	DateKey model.DateKey   `json:"dateKey"`
	Habits  map[string]bool `json:"habits"`
	Note    string          `json:"note"`
}

type Progress struct {
	Completed int  `json:"completed"`
	Total     int  `json:"total"`
	Percent   int  `json:"percent"`
	Perfect   bool `json:"perfect"`
}

// EnsureDay materializes key without writing back into s. Recorded values are
// kept (including ones for habits that no longer exist); current habits with
// no record are filled with false.
func EnsureDay(s *Snapshot, key model.DateKey) DayLog {
	recorded := s.Log[key]
	day := DayLog{
		DateKey: key,
		Habits:  make(map[string]bool, len(s.Habits)+len(recorded)),
		Note:    s.DailyNotes[key],
	}
	for id, v := range recorded {
		day.Habits[id] = v
	}
	for _, h := range s.Habits {
		if _, ok := day.Habits[h.ID]; !ok {
			day.Habits[h.ID] = false
		}
	}
	return day
}

// DailyProgress scores key against the current habit set only. Entries for
// habits that are no longer defined do not count toward either side.
func DailyProgress(s *Snapshot, key model.DateKey) Progress {
	total := len(s.Habits)
	if total == 0 {
		return Progress{}
	}
	day := s.Log[key]
	completed := 0
	for _, h := range s.Habits {
		if day[h.ID] {
			completed++
		}
	}
	return Progress{
		Completed: completed,
		Total:     total,
		Percent:   roundRatio(100*completed, total),
		Perfect:   completed == total,
	}
}

// WindowAverage is the rounded mean of each day's percent; 0 for no days.
func WindowAverage(s *Snapshot, keys []model.DateKey) int {
	if len(keys) == 0 {
		return 0
	}
	sum := 0
	for _, k := range keys {
		sum += DailyProgress(s, k).Percent
	}
	return roundRatio(sum, len(keys))
}

type DayStatus string

const (
	StatusPerfect   DayStatus = "perfect"
	StatusOnTrack   DayStatus = "on_track"
	StatusKeepGoing DayStatus = "keep_going"
)

func StatusOf(p Progress) DayStatus {
	switch {
	case p.Perfect:
		return StatusPerfect
	case p.Percent >= 70:
		return StatusOnTrack
	default:
		return StatusKeepGoing
	}
}

// roundRatio returns num/den rounded half up. Both operands are non-negative.
func roundRatio(num, den int) int {
	if den == 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

// Materialize returns EnsureDay for every key, in the full-state shape.
func Materialize(s *Snapshot, keys []model.DateKey) map[model.DateKey]model.DayEntry {
	out := make(map[model.DateKey]model.DayEntry, len(keys))
	for _, k := range keys {
		day := EnsureDay(s, k)
		out[k] = model.DayEntry{Habits: day.Habits, Note: day.Note}
	}
	return out
}
