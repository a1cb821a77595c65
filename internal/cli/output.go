package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"habitsync/internal/tracker"
)

// printer writes either indented JSON or the text rendering of a value.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) print(v any, text func(io.Writer)) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p.w)
	return nil
}

func writeSummary(w io.Writer, s tracker.Summary) {
	fmt.Fprintf(w, "Today %s: %d/%d habits (%d%%, %s)\n",
		s.Today, s.TodayProgress.Completed, s.TodayProgress.Total, s.TodayProgress.Percent, s.TodayProgress.Status)
	fmt.Fprintf(w, "Week average: %d%%  Month average: %d%%\n", s.WeekAverage, s.MonthAverage)
	fmt.Fprintf(w, "Perfect streak: %d (longest this month %d)\n", s.CurrentStreak, s.LongestStreak)

	days := make([]string, 0, len(s.Week))
	for _, d := range s.Week {
		days = append(days, fmt.Sprintf("%s %3d%%", d.DateKey.Time(time.UTC).Weekday().String()[:3], d.Percent))
	}
	fmt.Fprintf(w, "Week: %s\n", strings.Join(days, " | "))

	for _, m := range s.Milestones {
		fmt.Fprintf(w, "  %-24s %-11s %3d%%\n", m.Label, m.Status, m.Progress)
	}
}
