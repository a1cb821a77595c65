package tracker

import (
	"time"

	"habitsync/internal/model"
)

type DayScore struct {
	DateKey model.DateKey `json:"dateKey"`
	Progress
	Status DayStatus `json:"status"`
}

type WeekChunk struct {
	Index   int           `json:"index"`
	Start   model.DateKey `json:"start"`
	End     model.DateKey `json:"end"`
	Average int           `json:"average"`
}

type MonthScore struct {
	Month   time.Month `json:"month"`
	Name    string     `json:"name"`
	Average int        `json:"average"`
}

// Summary is everything a dashboard renders, computed in one pass.
type Summary struct {
	Today         model.DateKey       `json:"today"`
	TodayProgress DayScore            `json:"todayProgress"`
	Week          []DayScore          `json:"week"`
	WeekAverage   int                 `json:"weekAverage"`
	MonthAverage  int                 `json:"monthAverage"`
	CurrentStreak int                 `json:"currentStreak"`
	LongestStreak int                 `json:"longestStreak"`
	Milestones    []MilestoneProgress `json:"milestones"`
	WeekRollup    []WeekChunk         `json:"weekRollup"`
	Year          []MonthScore        `json:"year"`
}

func Score(s *Snapshot, key model.DateKey) DayScore {
	p := DailyProgress(s, key)
	return DayScore{DateKey: key, Progress: p, Status: StatusOf(p)}
}

// WeekRollup splits today's month into consecutive 7-day chunks; the last
// chunk holds the remaining days.
func WeekRollup(s *Snapshot, today model.DateKey) []WeekChunk {
	days := Month(today)
	var chunks []WeekChunk
	for i := 0; i < len(days); i += 7 {
		end := i + 7
		if end > len(days) {
			end = len(days)
		}
		part := days[i:end]
		chunks = append(chunks, WeekChunk{
			Index:   i/7 + 1,
			Start:   part[0],
			End:     part[len(part)-1],
			Average: WindowAverage(s, part),
		})
	}
	return chunks
}

// YearGrid averages each month of today's year.
func YearGrid(s *Snapshot, today model.DateKey) []MonthScore {
	year := today.Time(time.UTC).Year()
	out := make([]MonthScore, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, MonthScore{
			Month:   m,
			Name:    m.String(),
			Average: WindowAverage(s, MonthOfYear(year, m)),
		})
	}
	return out
}

func Summarize(s *Snapshot, today model.DateKey) Summary {
	week := Week(today)
	scores := make([]DayScore, 0, len(week))
	for _, k := range week {
		scores = append(scores, Score(s, k))
	}
	current := CurrentPerfectStreak(s, today)
	longest := LongestPerfectStreak(s, today)
	return Summary{
		Today:         today,
		TodayProgress: Score(s, today),
		Week:          scores,
		WeekAverage:   WindowAverage(s, week),
		MonthAverage:  WindowAverage(s, Month(today)),
		CurrentStreak: current,
		LongestStreak: longest,
		Milestones:    EvaluateMilestones(Milestones, current, longest),
		WeekRollup:    WeekRollup(s, today),
		Year:          YearGrid(s, today),
	}
}
