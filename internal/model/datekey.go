package model

import (
	"fmt"
	"time"
)

const dateKeyLayout = "2006-01-02"

// DateKey identifies a calendar day as YYYY-MM-DD in the tracker's reference
// timezone. Lexicographic order is chronological order.
type DateKey string

// KeyOf formats t as a DateKey in loc.
func KeyOf(t time.Time, loc *time.Location) DateKey {
	return DateKey(t.In(loc).Format(dateKeyLayout))
}

// ParseDateKey validates the canonical form. "2024-1-05" and "2024-02-30" are
// both rejected.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(dateKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", s, err)
	}
	if t.Format(dateKeyLayout) != s {
		return "", fmt.Errorf("invalid date key %q: not canonical", s)
	}
	return DateKey(s), nil
}

// Time returns local noon of the day in loc. Noon keeps AddDate arithmetic
// clear of DST transitions.
func (k DateKey) Time(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateKeyLayout, string(k), loc)
	if err != nil {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
}

// AddDays shifts the key by n calendar days.
func (k DateKey) AddDays(n int) DateKey {
	t := k.Time(time.UTC)
	if t.IsZero() {
		return k
	}
	return DateKey(t.AddDate(0, 0, n).Format(dateKeyLayout))
}

func (k DateKey) String() string {
	return string(k)
}
