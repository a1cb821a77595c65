package tracker

import (
	"time"

	"habitsync/internal/model"
)

// Calendar pins "today" to one reference timezone. All window generators
// below take an already resolved DateKey, so only Today touches the clock.
type Calendar struct {
	Location *time.Location
	Now      func() time.Time
}

func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{Location: loc, Now: time.Now}
}

// LoadCalendar resolves an IANA zone name; empty means UTC.
func LoadCalendar(name string) (Calendar, error) {
	if name == "" {
		return NewCalendar(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, err
	}
	return NewCalendar(loc), nil
}

func (c Calendar) Today() model.DateKey {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return model.KeyOf(now(), loc)
}

// Week returns Monday..Sunday of the ISO week containing today.
func Week(today model.DateKey) []model.DateKey {
	t := today.Time(time.UTC)
	offset := (int(t.Weekday()) + 6) % 7
	return Range(today.AddDays(-offset), 7)
}

// Month returns every day of the month containing today.
func Month(today model.DateKey) []model.DateKey {
	t := today.Time(time.UTC)
	return MonthOfYear(t.Year(), t.Month())
}

// MonthOfYear returns every day of the given month.
func MonthOfYear(year int, month time.Month) []model.DateKey {
	first := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC)
	days := time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC).Day()
	return Range(model.KeyOf(first, time.UTC), days)
}

// Trailing returns the n days ending at (and including) end, oldest first.
func Trailing(end model.DateKey, n int) []model.DateKey {
	if n <= 0 {
		return nil
	}
	return Range(end.AddDays(-(n - 1)), n)
}

// Range returns n consecutive days starting at start.
func Range(start model.DateKey, n int) []model.DateKey {
	keys := make([]model.DateKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, start.AddDays(i))
	}
	return keys
}
