package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"habitsync/internal/apperr"
	"habitsync/internal/model"
)

// SQLiteStore keeps everything in one local file. It is the default backend
// for a single server process.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	logger.Info("Opening SQLite store", zap.String("path", path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time; transactions never wait on each other.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classifySQLite(err, "ping sqlite db")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		logger.Error("Failed to apply schema", zap.Error(err))
		return nil, classifySQLite(err, "apply schema")
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) ListHabits(ctx context.Context) ([]model.Habit, error) {
	defer observe("list", "habits", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, classifySQLite(err, "list habits")
	}
	s.logger.Debug("Listing habits")

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, icon, category, created_at, updated_at
        FROM habits
        ORDER BY created_at ASC, id ASC
    `)
	if err != nil {
		s.logger.Error("Failed to list habits", zap.Error(err))
		return nil, classifySQLite(err, "list habits")
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, classifySQLite(err, "scan habit")
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(err, "list habits")
	}
	return habits, nil
}

func (s *SQLiteStore) GetHabit(ctx context.Context, id string) (model.Habit, error) {
	defer observe("get", "habits", time.Now())
	if err := ctx.Err(); err != nil {
		return model.Habit{}, classifySQLite(err, "get habit")
	}
	s.logger.Debug("Getting habit", zap.String("id", id))

	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, icon, category, created_at, updated_at
        FROM habits
        WHERE id = ?
    `, id)
	h, err := scanHabit(row)
	if err != nil {
		return model.Habit{}, classifySQLite(err, fmt.Sprintf("habit %s", id))
	}
	return h, nil
}

func (s *SQLiteStore) CreateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	defer observe("insert", "habits", time.Now())
	if err := ctx.Err(); err != nil {
		return model.Habit{}, classifySQLite(err, "create habit")
	}
	h = withDefaults(h)
	s.logger.Debug("Inserting habit",
		zap.String("id", h.ID),
		zap.String("name", h.Name),
		zap.String("category", h.Category),
	)

	ts := now()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO habits (id, name, icon, category, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, h.ID, h.Name, h.Icon, h.Category, toMillis(ts), toMillis(ts))
	if err != nil {
		s.logger.Error("Failed to insert habit", zap.String("id", h.ID), zap.Error(err))
		return model.Habit{}, classifySQLite(err, fmt.Sprintf("habit %s", h.ID))
	}
	h.CreatedAt = fromMillis(toMillis(ts))
	h.UpdatedAt = h.CreatedAt

	s.logger.Info("Habit inserted successfully", zap.String("id", h.ID))
	return h, nil
}

func (s *SQLiteStore) UpdateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	defer observe("update", "habits", time.Now())
	if err := ctx.Err(); err != nil {
		return model.Habit{}, classifySQLite(err, "update habit")
	}
	h = withDefaults(h)
	s.logger.Debug("Updating habit", zap.String("id", h.ID))

	op := fmt.Sprintf("habit %s", h.ID)
	ts := toMillis(now())
	row := s.db.QueryRowContext(ctx, `
        UPDATE habits
        SET name = ?, icon = ?, category = ?, updated_at = ?
        WHERE id = ?
        RETURNING created_at
    `, h.Name, h.Icon, h.Category, ts, h.ID)
	var created int64
	if err := row.Scan(&created); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Failed to update habit", zap.String("id", h.ID), zap.Error(err))
		}
		return model.Habit{}, classifySQLite(err, op)
	}
	h.CreatedAt = fromMillis(created)
	h.UpdatedAt = fromMillis(ts)

	s.logger.Info("Habit updated successfully", zap.String("id", h.ID))
	return h, nil
}

func (s *SQLiteStore) DeleteHabit(ctx context.Context, id string) error {
	defer observe("delete", "habits", time.Now())
	if err := ctx.Err(); err != nil {
		return classifySQLite(err, "delete habit")
	}
	s.logger.Debug("Deleting habit", zap.String("id", id))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM habit_logs WHERE habit_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Failed to delete habit", zap.String("id", id), zap.Error(err))
		}
		return classifySQLite(err, fmt.Sprintf("habit %s", id))
	}

	s.logger.Info("Habit deleted successfully", zap.String("id", id))
	return nil
}

func (s *SQLiteStore) GetLogRange(ctx context.Context, start, end model.DateKey) ([]model.LogEntry, error) {
	defer observe("range", "habit_logs", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, classifySQLite(err, "log range")
	}
	s.logger.Debug("Getting log range", zap.Stringer("start", start), zap.Stringer("end", end))

	rows, err := s.db.QueryContext(ctx, `
        SELECT date_key, habit_id, completed
        FROM habit_logs
        WHERE date_key >= ? AND date_key <= ?
        ORDER BY date_key ASC, habit_id ASC
    `, string(start), string(end))
	if err != nil {
		s.logger.Error("Failed to get log range", zap.Error(err))
		return nil, classifySQLite(err, "log range")
	}
	defer rows.Close()

	entries := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		var key string
		if err := rows.Scan(&key, &e.HabitID, &e.Completed); err != nil {
			return nil, classifySQLite(err, "scan log entry")
		}
		e.DateKey = model.DateKey(key)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(err, "log range")
	}
	return entries, nil
}

func (s *SQLiteStore) UpsertLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error) {
	defer observe("upsert", "habit_logs", time.Now())
	if err := ctx.Err(); err != nil {
		return model.LogEntry{}, classifySQLite(err, "upsert log")
	}
	s.logger.Debug("Upserting log entry",
		zap.Stringer("date_key", e.DateKey),
		zap.String("habit_id", e.HabitID),
		zap.Bool("completed", e.Completed),
	)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM habits WHERE id = ?`, e.HabitID).Scan(&one); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO habit_logs (date_key, habit_id, completed, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT (date_key, habit_id)
            DO UPDATE SET completed = excluded.completed, updated_at = excluded.updated_at
        `, string(e.DateKey), e.HabitID, e.Completed, toMillis(now()))
		return err
	})
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("Failed to upsert log entry", zap.String("habit_id", e.HabitID), zap.Error(err))
		}
		return model.LogEntry{}, classifySQLite(err, fmt.Sprintf("habit %s", e.HabitID))
	}
	return e, nil
}

func (s *SQLiteStore) GetDailyNote(ctx context.Context, key model.DateKey) (model.DailyNote, error) {
	defer observe("get", "daily_notes", time.Now())
	if err := ctx.Err(); err != nil {
		return model.DailyNote{}, classifySQLite(err, "daily note")
	}

	n := model.DailyNote{DateKey: key}
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT note, updated_at FROM daily_notes WHERE date_key = ?`, string(key)).
		Scan(&n.Note, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return n, nil
	}
	if err != nil {
		s.logger.Error("Failed to get daily note", zap.Error(err))
		return model.DailyNote{}, classifySQLite(err, "daily note")
	}
	n.UpdatedAt = fromMillis(updated)
	return n, nil
}

func (s *SQLiteStore) GetDailyNotesRange(ctx context.Context, start, end model.DateKey) ([]model.DailyNote, error) {
	defer observe("range", "daily_notes", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, classifySQLite(err, "daily notes range")
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT date_key, note, updated_at
        FROM daily_notes
        WHERE date_key >= ? AND date_key <= ?
        ORDER BY date_key ASC
    `, string(start), string(end))
	if err != nil {
		s.logger.Error("Failed to get daily notes", zap.Error(err))
		return nil, classifySQLite(err, "daily notes range")
	}
	defer rows.Close()

	notes := []model.DailyNote{}
	for rows.Next() {
		var n model.DailyNote
		var key string
		var updated int64
		if err := rows.Scan(&key, &n.Note, &updated); err != nil {
			return nil, classifySQLite(err, "scan daily note")
		}
		n.DateKey = model.DateKey(key)
		n.UpdatedAt = fromMillis(updated)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLite(err, "daily notes range")
	}
	return notes, nil
}

func (s *SQLiteStore) UpsertDailyNote(ctx context.Context, key model.DateKey, note string) (model.DailyNote, error) {
	defer observe("upsert", "daily_notes", time.Now())
	if err := ctx.Err(); err != nil {
		return model.DailyNote{}, classifySQLite(err, "daily note")
	}
	s.logger.Debug("Upserting daily note", zap.Stringer("date_key", key), zap.Int("length", len(note)))

	ts := toMillis(now())
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO daily_notes (date_key, note, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (date_key)
        DO UPDATE SET note = excluded.note, updated_at = excluded.updated_at
    `, string(key), note, ts)
	if err != nil {
		s.logger.Error("Failed to upsert daily note", zap.Error(err))
		return model.DailyNote{}, classifySQLite(err, "daily note")
	}
	return model.DailyNote{DateKey: key, Note: note, UpdatedAt: fromMillis(ts)}, nil
}

func (s *SQLiteStore) GetGlobalNote(ctx context.Context) (model.GlobalNote, error) {
	defer observe("get", "global_notes", time.Now())
	if err := ctx.Err(); err != nil {
		return model.GlobalNote{}, classifySQLite(err, "global note")
	}

	var n model.GlobalNote
	var updated int64
	err := s.db.QueryRowContext(ctx, `SELECT content, updated_at FROM global_notes ORDER BY id DESC LIMIT 1`).
		Scan(&n.Content, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GlobalNote{}, nil
	}
	if err != nil {
		s.logger.Error("Failed to get global note", zap.Error(err))
		return model.GlobalNote{}, classifySQLite(err, "global note")
	}
	n.UpdatedAt = fromMillis(updated)
	return n, nil
}

func (s *SQLiteStore) UpsertGlobalNote(ctx context.Context, content string) (model.GlobalNote, error) {
	defer observe("insert", "global_notes", time.Now())
	if err := ctx.Err(); err != nil {
		return model.GlobalNote{}, classifySQLite(err, "global note")
	}
	s.logger.Debug("Saving global note", zap.Int("length", len(content)))

	ts := toMillis(now())
	if _, err := s.db.ExecContext(ctx, `INSERT INTO global_notes (content, updated_at) VALUES (?, ?)`, content, ts); err != nil {
		s.logger.Error("Failed to save global note", zap.Error(err))
		return model.GlobalNote{}, classifySQLite(err, "global note")
	}
	return model.GlobalNote{Content: content, UpdatedAt: fromMillis(ts)}, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (model.StoreStats, error) {
	defer observe("stats", "habit_logs", time.Now())
	if err := ctx.Err(); err != nil {
		return model.StoreStats{}, classifySQLite(err, "stats")
	}

	var st model.StoreStats
	err := s.db.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(*) FROM habits),
            (SELECT COUNT(*) FROM habit_logs WHERE completed = 1),
            (SELECT COUNT(DISTINCT date_key) FROM habit_logs)
    `).Scan(&st.Habits, &st.CompletedLogs, &st.LoggedDays)
	if err != nil {
		s.logger.Error("Failed to read stats", zap.Error(err))
		return model.StoreStats{}, classifySQLite(err, "stats")
	}
	return st, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.StoreUnavailable(err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (model.Habit, error) {
	var h model.Habit
	var created, updated int64
	if err := row.Scan(&h.ID, &h.Name, &h.Icon, &h.Category, &created, &updated); err != nil {
		return model.Habit{}, err
	}
	h.CreatedAt = fromMillis(created)
	h.UpdatedAt = fromMillis(updated)
	return h, nil
}

var _ Store = (*SQLiteStore)(nil)
