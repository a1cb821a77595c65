package model

import "time"

const (
	DefaultIcon     = "•"
	DefaultCategory = "General"
)

type Habit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogEntry is one (day, habit) completion flag.
type LogEntry struct {
	DateKey   DateKey `json:"date_key"`
	HabitID   string  `json:"habit_id"`
	Completed bool    `json:"completed"`
}

type DailyNote struct {
	DateKey   DateKey   `json:"date_key"`
	Note      string    `json:"note"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GlobalNote struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoreStats is a coarse summary of what is persisted.
type StoreStats struct {
	Habits        int `json:"habits"`
	CompletedLogs int `json:"completed_logs"`
	LoggedDays    int `json:"logged_days"`
}
