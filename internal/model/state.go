package model

import "time"

// DayEntry is one day of the full-state payload.
type DayEntry struct {
	Habits map[string]bool `json:"habits"`
	Note   string          `json:"note"`
}

// State is the full-state fetch a session loads on connect and after every
// reconnect.
type State struct {
	Habits    []Habit              `json:"habits"`
	HabitLog  map[DateKey]DayEntry `json:"habitLog"`
	Notes     string               `json:"notes"`
	Timezone  string               `json:"timezone"`
	Today     DateKey              `json:"today"`
	LastSaved time.Time            `json:"lastSaved"`
}
