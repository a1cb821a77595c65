// Package repository persists habits, the sparse day log and notes. Every
// backend classifies driver errors into apperr kinds before returning them.
package repository

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitsync/internal/model"
	"habitsync/pkg/config"
	"habitsync/pkg/db"
)

//go:embed schema/postgres.sql
var postgresSchema string

//go:embed schema/sqlite.sql
var sqliteSchema string

// Store is the Log Store contract shared by all backends.
type Store interface {
	ListHabits(ctx context.Context) ([]model.Habit, error)
	GetHabit(ctx context.Context, id string) (model.Habit, error)
	CreateHabit(ctx context.Context, h model.Habit) (model.Habit, error)
	UpdateHabit(ctx context.Context, h model.Habit) (model.Habit, error)
	// DeleteHabit removes the habit and all of its log entries.
	DeleteHabit(ctx context.Context, id string) error

	// GetLogRange returns entries with start <= date_key <= end.
	GetLogRange(ctx context.Context, start, end model.DateKey) ([]model.LogEntry, error)
	// UpsertLog rejects entries for unknown habits with NotFound.
	UpsertLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error)

	// GetDailyNote returns an empty note when the day has none.
	GetDailyNote(ctx context.Context, key model.DateKey) (model.DailyNote, error)
	GetDailyNotesRange(ctx context.Context, start, end model.DateKey) ([]model.DailyNote, error)
	UpsertDailyNote(ctx context.Context, key model.DateKey, note string) (model.DailyNote, error)

	GetGlobalNote(ctx context.Context) (model.GlobalNote, error)
	UpsertGlobalNote(ctx context.Context, content string) (model.GlobalNote, error)

	Stats(ctx context.Context) (model.StoreStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the backend named by cfg.Driver and applies the schema.
func Open(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path, logger)
	case "postgres", "postgresql":
		pool, err := db.NewConnection(cfg, logger)
		if err != nil {
			return nil, err
		}
		store := NewPostgresStore(pool, logger)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

func withDefaults(h model.Habit) model.Habit {
	h.Name = strings.TrimSpace(h.Name)
	if strings.TrimSpace(h.Icon) == "" {
		h.Icon = model.DefaultIcon
	}
	if strings.TrimSpace(h.Category) == "" {
		h.Category = model.DefaultCategory
	}
	return h
}

func now() time.Time {
	return time.Now().UTC()
}
