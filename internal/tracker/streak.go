package tracker

import (
	"habitsync/internal/model"
)

// CurrentPerfectStreak counts consecutive perfect days ending at today, or at
// yesterday while today is still pending. Days after today are ignored. The
// scan never leaves the current calendar month.
func CurrentPerfectStreak(s *Snapshot, today model.DateKey) int {
	keys := Month(today)
	streak := 0
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if key > today {
			continue
		}
		if DailyProgress(s, key).Perfect {
			streak++
			continue
		}
		if key == today {
			continue
		}
		break
	}
	return streak
}

// LongestPerfectStreak is the longest run of perfect days in today's month.
func LongestPerfectStreak(s *Snapshot, today model.DateKey) int {
	longest, current := 0, 0
	for _, key := range Month(today) {
		if DailyProgress(s, key).Perfect {
			current++
			if current > longest {
				longest = current
			}
			continue
		}
		current = 0
	}
	return longest
}
