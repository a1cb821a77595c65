package tracker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitsync/internal/event"
	"habitsync/internal/model"
)

// 2026-10-17 is a Saturday.
const today = model.DateKey("2026-10-17")

func habits(ids ...string) []model.Habit {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.Habit, 0, len(ids))
	for i, id := range ids {
		out = append(out, model.Habit{ID: id, Name: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	return out
}

func snapshotWith(ids ...string) *Snapshot {
	s := NewSnapshot()
	s.Habits = habits(ids...)
	return s
}

func markPerfect(s *Snapshot, keys ...model.DateKey) {
	for _, k := range keys {
		for _, h := range s.Habits {
			s.setLog(k, h.ID, true)
		}
	}
}

func TestDailyProgress_ZeroHabits(t *testing.T) {
	s := NewSnapshot()
	s.setLog(today, "ghost", true)

	assert.Equal(t, Progress{}, DailyProgress(s, today))
	assert.False(t, DailyProgress(s, today).Perfect)
}

func TestDailyProgress_HalfDone(t *testing.T) {
	s := snapshotWith("A", "B")
	s.setLog(today, "A", true)
	s.setLog(today, "B", false)

	assert.Equal(t, Progress{Completed: 1, Total: 2, Percent: 50, Perfect: false}, DailyProgress(s, today))
}

func TestDailyProgress_PerfectDayUnlocksThresholdOne(t *testing.T) {
	s := snapshotWith("A", "B", "C")
	markPerfect(s, today)

	p := DailyProgress(s, today)
	require.True(t, p.Perfect)
	assert.Equal(t, 100, p.Percent)

	current := CurrentPerfectStreak(s, today)
	m := EvaluateMilestone(Milestone{Label: "one", ThresholdDays: 1}, current, LongestPerfectStreak(s, today))
	assert.Equal(t, MilestoneUnlocked, m.Status)
	assert.Equal(t, 100, m.Progress)
}

func TestDailyProgress_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		total, completed, want int
	}{
		{3, 1, 33},
		{3, 2, 67},
		{8, 1, 13},
		{8, 3, 38},
		{7, 7, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.completed, tt.total), func(t *testing.T) {
			ids := make([]string, tt.total)
			for i := range ids {
				ids[i] = fmt.Sprintf("h%d", i)
			}
			s := snapshotWith(ids...)
			for i := 0; i < tt.completed; i++ {
				s.setLog(today, ids[i], true)
			}
			p := DailyProgress(s, today)
			assert.Equal(t, tt.want, p.Percent)
			assert.Equal(t, tt.completed == tt.total, p.Perfect)
		})
	}
}

func TestDailyProgress_IgnoresDeletedHabits(t *testing.T) {
	s := snapshotWith("A")
	s.setLog(today, "deleted", true)

	p := DailyProgress(s, today)
	assert.Equal(t, 0, p.Completed)
	assert.Equal(t, 1, p.Total)
}

func TestEnsureDay_IdempotentAndDoesNotPersist(t *testing.T) {
	s := snapshotWith("A", "B")
	s.setLog("2026-10-16", "A", true)

	first := EnsureDay(s, today)
	second := EnsureDay(s, today)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]bool{"A": false, "B": false}, first.Habits)
	_, stored := s.Log[today]
	assert.False(t, stored, "materialization must not write back")

	yesterday := EnsureDay(s, "2026-10-16")
	assert.Equal(t, map[string]bool{"A": true, "B": false}, yesterday.Habits)
	assert.Equal(t, 2, DailyProgress(s, "2026-10-16").Total)
}

func TestWindowAverage(t *testing.T) {
	s := snapshotWith("A", "B", "C")
	s.setLog("2026-10-12", "A", true)
	s.setLog("2026-10-13", "A", true)
	s.setLog("2026-10-13", "B", true)
	markPerfect(s, "2026-10-14")

	assert.Equal(t, 0, WindowAverage(s, nil))
	forward := []model.DateKey{"2026-10-12", "2026-10-13", "2026-10-14"}
	backward := []model.DateKey{"2026-10-14", "2026-10-13", "2026-10-12"}
	// (33 + 67 + 100) / 3 = 66.67
	assert.Equal(t, 67, WindowAverage(s, forward))
	assert.Equal(t, WindowAverage(s, forward), WindowAverage(s, backward))
}

func TestCurrentPerfectStreak_TodayPending(t *testing.T) {
	s := snapshotWith("A", "B")
	markPerfect(s, "2026-10-12", "2026-10-13", "2026-10-14", "2026-10-15", "2026-10-16")

	assert.Equal(t, 5, CurrentPerfectStreak(s, today))

	markPerfect(s, today)
	assert.Equal(t, 6, CurrentPerfectStreak(s, today))
}

func TestCurrentPerfectStreak_GapEndsScan(t *testing.T) {
	s := snapshotWith("A")
	markPerfect(s, "2026-10-10", "2026-10-11", "2026-10-12", "2026-10-15", "2026-10-16")

	assert.Equal(t, 2, CurrentPerfectStreak(s, today))
}

func TestCurrentPerfectStreak_YesterdayMissedIsZero(t *testing.T) {
	s := snapshotWith("A")
	markPerfect(s, "2026-10-14", "2026-10-15")

	assert.Equal(t, 0, CurrentPerfectStreak(s, today))
}

func TestCurrentPerfectStreak_SkipsFutureDays(t *testing.T) {
	s := snapshotWith("A")
	markPerfect(s, "2026-10-16", "2026-10-18", "2026-10-19")

	assert.Equal(t, 1, CurrentPerfectStreak(s, today))
}

func TestCurrentPerfectStreak_BoundedByMonth(t *testing.T) {
	s := snapshotWith("A")
	markPerfect(s, Month("2026-10-01")...)

	assert.Equal(t, 0, CurrentPerfectStreak(s, "2026-11-01"))
	markPerfect(s, "2026-11-01")
	assert.Equal(t, 1, CurrentPerfectStreak(s, "2026-11-01"))
}

func TestCurrentPerfectStreak_NoHabits(t *testing.T) {
	s := NewSnapshot()
	assert.Equal(t, 0, CurrentPerfectStreak(s, today))
	assert.Equal(t, 0, LongestPerfectStreak(s, today))
}

func TestLongestPerfectStreak(t *testing.T) {
	s := snapshotWith("A")
	markPerfect(s, "2026-10-01", "2026-10-02", "2026-10-03", "2026-10-05", "2026-10-20", "2026-10-21")
	markPerfect(s, "2026-09-28", "2026-09-29", "2026-09-30")

	assert.Equal(t, 3, LongestPerfectStreak(s, today))
}

func TestEvaluateMilestones(t *testing.T) {
	got := EvaluateMilestones(Milestones, 5, 8)
	require.Len(t, got, len(Milestones))

	assert.Equal(t, MilestoneUnlocked, got[0].Status)
	assert.Equal(t, 100, got[0].Progress)
	// 15-day target: longest 8 reached half.
	assert.Equal(t, MilestoneInProgress, got[1].Status)
	assert.Equal(t, 33, got[1].Progress)
	assert.Equal(t, MilestoneLocked, got[2].Status)
	assert.Equal(t, 17, got[2].Progress)
	assert.Equal(t, 5, got[5].Progress)
}

func TestMilestoneProgressCapped(t *testing.T) {
	m := EvaluateMilestone(Milestones[0], 12, 12)
	assert.Equal(t, 100, m.Progress)
	assert.Equal(t, MilestoneUnlocked, m.Status)
}

func TestWeek(t *testing.T) {
	for _, k := range []model.DateKey{"2026-10-12", today, "2026-10-18"} {
		week := Week(k)
		require.Len(t, week, 7)
		assert.Equal(t, model.DateKey("2026-10-12"), week[0], k)
		assert.Equal(t, model.DateKey("2026-10-18"), week[6], k)
	}

	// Week spanning a year boundary.
	week := Week("2027-01-01")
	assert.Equal(t, model.DateKey("2026-12-28"), week[0])
	assert.Equal(t, model.DateKey("2027-01-03"), week[6])
}

func TestMonth(t *testing.T) {
	assert.Len(t, Month("2024-02-10"), 29)
	assert.Len(t, Month("2026-02-10"), 28)

	oct := Month(today)
	require.Len(t, oct, 31)
	assert.Equal(t, model.DateKey("2026-10-01"), oct[0])
	assert.Equal(t, model.DateKey("2026-10-31"), oct[30])

	dec := MonthOfYear(2026, time.December)
	assert.Equal(t, model.DateKey("2026-12-31"), dec[len(dec)-1])
}

func TestTrailing(t *testing.T) {
	keys := Trailing(today, 365)
	require.Len(t, keys, 365)
	assert.Equal(t, model.DateKey("2025-10-18"), keys[0])
	assert.Equal(t, today, keys[364])
	assert.Nil(t, Trailing(today, 0))
}

func TestCalendarToday_UsesReferenceZone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	instant := time.Date(2026, time.October, 17, 20, 0, 0, 0, time.UTC)

	utc := Calendar{Location: time.UTC, Now: func() time.Time { return instant }}
	jst := Calendar{Location: tokyo, Now: func() time.Time { return instant }}
	assert.Equal(t, model.DateKey("2026-10-17"), utc.Today())
	assert.Equal(t, model.DateKey("2026-10-18"), jst.Today())
}

func TestWeekRollup(t *testing.T) {
	s := snapshotWith("A")
	markPerfect(s, "2026-10-29", "2026-10-30")

	chunks := WeekRollup(s, today)
	require.Len(t, chunks, 5)
	last := chunks[4]
	assert.Equal(t, 5, last.Index)
	assert.Equal(t, model.DateKey("2026-10-29"), last.Start)
	assert.Equal(t, model.DateKey("2026-10-31"), last.End)
	assert.Equal(t, 67, last.Average)
	assert.Equal(t, 0, chunks[0].Average)
}

func TestSummarize(t *testing.T) {
	s := snapshotWith("A", "B")
	markPerfect(s, "2026-10-12", "2026-10-13", "2026-10-14", "2026-10-15", "2026-10-16")
	s.setLog(today, "A", true)

	sum := Summarize(s, today)
	assert.Equal(t, today, sum.Today)
	assert.Equal(t, 50, sum.TodayProgress.Percent)
	assert.Equal(t, StatusKeepGoing, sum.TodayProgress.Status)
	require.Len(t, sum.Week, 7)
	assert.Equal(t, StatusPerfect, sum.Week[0].Status)
	// (5*100 + 50 + 0) / 7 = 78.57
	assert.Equal(t, 79, sum.WeekAverage)
	assert.Equal(t, 5, sum.CurrentStreak)
	assert.Equal(t, 5, sum.LongestStreak)
	assert.Equal(t, MilestoneUnlocked, sum.Milestones[0].Status)
	require.Len(t, sum.Year, 12)
	assert.Equal(t, "October", sum.Year[9].Name)
	assert.Equal(t, sum.MonthAverage, sum.Year[9].Average)
}

func TestApply_LastEventWins(t *testing.T) {
	s := snapshotWith("A", "B")

	s.Apply(event.LogUpdated{DateKey: today, HabitID: "A", Completed: true})
	s.Apply(event.LogUpdated{DateKey: today, HabitID: "A", Completed: false})
	assert.False(t, s.Log[today]["A"])

	s.Apply(event.DailyNoteUpdated{DateKey: today, Note: "rested"})
	s.Apply(event.GlobalNoteUpdated{Content: ""})
	assert.Equal(t, "rested", s.DailyNotes[today])
	assert.Equal(t, "", s.GlobalNote)
}

func TestApply_HabitLifecycle(t *testing.T) {
	s := snapshotWith("A", "B")
	markPerfect(s, today)
	require.True(t, DailyProgress(s, today).Perfect)

	c := habits("A", "B", "C")[2]
	s.Apply(event.HabitCreated{Habit: c})
	assert.Equal(t, Progress{Completed: 2, Total: 3, Percent: 67}, DailyProgress(s, today))

	c.Name = "renamed"
	s.Apply(event.HabitUpdated{Habit: c})
	require.Len(t, s.Habits, 3)
	assert.Equal(t, "renamed", s.Habits[2].Name)

	s.Apply(event.HabitDeleted{ID: "C"})
	s.Apply(event.HabitDeleted{ID: "C"})
	assert.True(t, DailyProgress(s, today).Perfect)

	s.Apply(event.HabitDeleted{ID: "A"})
	_, ok := s.Log[today]["A"]
	assert.False(t, ok)
	assert.Equal(t, Progress{Completed: 1, Total: 1, Percent: 100, Perfect: true}, DailyProgress(s, today))
}

func TestClone_IsIndependent(t *testing.T) {
	s := snapshotWith("A")
	s.setLog(today, "A", true)

	c := s.Clone()
	c.setLog(today, "A", false)
	c.Apply(event.HabitDeleted{ID: "A"})

	assert.True(t, s.Log[today]["A"])
	assert.Len(t, s.Habits, 1)
}
