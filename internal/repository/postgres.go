package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"habitsync/internal/apperr"
	"habitsync/internal/model"
	"habitsync/pkg/metrics"
)

type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Migrate creates missing tables. Statements are idempotent.
func (r *PostgresStore) Migrate(ctx context.Context) error {
	r.logger.Info("Applying PostgreSQL schema")
	if _, err := r.db.Exec(ctx, postgresSchema); err != nil {
		r.logger.Error("Failed to apply schema", zap.Error(err))
		return classifyPostgres(err, "apply schema")
	}
	return nil
}

func (r *PostgresStore) ListHabits(ctx context.Context) ([]model.Habit, error) {
	defer observe("list", "habits", time.Now())
	r.logger.Debug("Listing habits")

	query := `
        SELECT id, name, icon, category, created_at, updated_at
        FROM habits
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list habits", zap.Error(err))
		return nil, classifyPostgres(err, "list habits")
	}
	defer rows.Close()

	habits := []model.Habit{}
	for rows.Next() {
		var h model.Habit
		if err := rows.Scan(&h.ID, &h.Name, &h.Icon, &h.Category, &h.CreatedAt, &h.UpdatedAt); err != nil {
			r.logger.Error("Failed to scan habit", zap.Error(err))
			return nil, classifyPostgres(err, "scan habit")
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgres(err, "list habits")
	}
	return habits, nil
}

func (r *PostgresStore) GetHabit(ctx context.Context, id string) (model.Habit, error) {
	defer observe("get", "habits", time.Now())
	r.logger.Debug("Getting habit", zap.String("id", id))

	query := `
        SELECT id, name, icon, category, created_at, updated_at
        FROM habits
        WHERE id = $1
    `
	var h model.Habit
	err := r.db.QueryRow(ctx, query, id).Scan(&h.ID, &h.Name, &h.Icon, &h.Category, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return model.Habit{}, classifyPostgres(err, fmt.Sprintf("habit %s", id))
	}
	return h, nil
}

func (r *PostgresStore) CreateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	defer observe("insert", "habits", time.Now())
	h = withDefaults(h)
	r.logger.Debug("Inserting habit",
		zap.String("id", h.ID),
		zap.String("name", h.Name),
		zap.String("category", h.Category),
	)

	query := `
        INSERT INTO habits (id, name, icon, category, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query, h.ID, h.Name, h.Icon, h.Category, now()).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert habit", zap.String("id", h.ID), zap.Error(err))
		return model.Habit{}, classifyPostgres(err, fmt.Sprintf("habit %s", h.ID))
	}

	r.logger.Info("Habit inserted successfully", zap.String("id", h.ID))
	return h, nil
}

func (r *PostgresStore) UpdateHabit(ctx context.Context, h model.Habit) (model.Habit, error) {
	defer observe("update", "habits", time.Now())
	h = withDefaults(h)
	r.logger.Debug("Updating habit", zap.String("id", h.ID))

	query := `
        UPDATE habits
        SET name = $2, icon = $3, category = $4, updated_at = $5
        WHERE id = $1
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query, h.ID, h.Name, h.Icon, h.Category, now()).Scan(&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update habit", zap.String("id", h.ID), zap.Error(err))
		return model.Habit{}, classifyPostgres(err, fmt.Sprintf("habit %s", h.ID))
	}

	r.logger.Info("Habit updated successfully", zap.String("id", h.ID))
	return h, nil
}

func (r *PostgresStore) DeleteHabit(ctx context.Context, id string) error {
	defer observe("delete", "habits", time.Now())
	r.logger.Debug("Deleting habit", zap.String("id", id))

	op := fmt.Sprintf("habit %s", id)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		logs, err := tx.Exec(ctx, `DELETE FROM habit_logs WHERE habit_id = $1`, id)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		r.logger.Debug("Cascaded habit logs", zap.String("id", id), zap.Int64("logs", logs.RowsAffected()))
		return nil
	})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("Failed to delete habit", zap.String("id", id), zap.Error(err))
		}
		return classifyPostgres(err, op)
	}

	r.logger.Info("Habit deleted successfully", zap.String("id", id))
	return nil
}

func (r *PostgresStore) GetLogRange(ctx context.Context, start, end model.DateKey) ([]model.LogEntry, error) {
	defer observe("range", "habit_logs", time.Now())
	r.logger.Debug("Getting log range", zap.Stringer("start", start), zap.Stringer("end", end))

	query := `
        SELECT date_key, habit_id, completed
        FROM habit_logs
        WHERE date_key >= $1 AND date_key <= $2
        ORDER BY date_key ASC, habit_id ASC
    `
	rows, err := r.db.Query(ctx, query, string(start), string(end))
	if err != nil {
		r.logger.Error("Failed to get log range", zap.Error(err))
		return nil, classifyPostgres(err, "log range")
	}
	defer rows.Close()

	entries := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		var key string
		if err := rows.Scan(&key, &e.HabitID, &e.Completed); err != nil {
			return nil, classifyPostgres(err, "scan log entry")
		}
		e.DateKey = model.DateKey(key)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgres(err, "log range")
	}
	return entries, nil
}

func (r *PostgresStore) UpsertLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error) {
	defer observe("upsert", "habit_logs", time.Now())
	r.logger.Debug("Upserting log entry",
		zap.Stringer("date_key", e.DateKey),
		zap.String("habit_id", e.HabitID),
		zap.Bool("completed", e.Completed),
	)

	op := fmt.Sprintf("habit %s", e.HabitID)
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM habits WHERE id = $1)`, e.HabitID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO habit_logs (date_key, habit_id, completed, updated_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (date_key, habit_id)
            DO UPDATE SET completed = EXCLUDED.completed, updated_at = EXCLUDED.updated_at
        `, string(e.DateKey), e.HabitID, e.Completed, now())
		return err
	})
	if err != nil {
		r.logger.Error("Failed to upsert log entry", zap.String("habit_id", e.HabitID), zap.Error(err))
		return model.LogEntry{}, classifyPostgres(err, op)
	}
	return e, nil
}

func (r *PostgresStore) GetDailyNote(ctx context.Context, key model.DateKey) (model.DailyNote, error) {
	defer observe("get", "daily_notes", time.Now())
	r.logger.Debug("Getting daily note", zap.Stringer("date_key", key))

	n := model.DailyNote{DateKey: key}
	err := r.db.QueryRow(ctx, `SELECT note, updated_at FROM daily_notes WHERE date_key = $1`, string(key)).
		Scan(&n.Note, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return n, nil
	}
	if err != nil {
		r.logger.Error("Failed to get daily note", zap.Error(err))
		return model.DailyNote{}, classifyPostgres(err, "daily note")
	}
	return n, nil
}

func (r *PostgresStore) GetDailyNotesRange(ctx context.Context, start, end model.DateKey) ([]model.DailyNote, error) {
	defer observe("range", "daily_notes", time.Now())

	query := `
        SELECT date_key, note, updated_at
        FROM daily_notes
        WHERE date_key >= $1 AND date_key <= $2
        ORDER BY date_key ASC
    `
	rows, err := r.db.Query(ctx, query, string(start), string(end))
	if err != nil {
		r.logger.Error("Failed to get daily notes", zap.Error(err))
		return nil, classifyPostgres(err, "daily notes range")
	}
	defer rows.Close()

	notes := []model.DailyNote{}
	for rows.Next() {
		var n model.DailyNote
		var key string
		if err := rows.Scan(&key, &n.Note, &n.UpdatedAt); err != nil {
			return nil, classifyPostgres(err, "scan daily note")
		}
		n.DateKey = model.DateKey(key)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgres(err, "daily notes range")
	}
	return notes, nil
}

func (r *PostgresStore) UpsertDailyNote(ctx context.Context, key model.DateKey, note string) (model.DailyNote, error) {
	defer observe("upsert", "daily_notes", time.Now())
	r.logger.Debug("Upserting daily note", zap.Stringer("date_key", key), zap.Int("length", len(note)))

	n := model.DailyNote{DateKey: key, Note: note}
	err := r.db.QueryRow(ctx, `
        INSERT INTO daily_notes (date_key, note, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (date_key)
        DO UPDATE SET note = EXCLUDED.note, updated_at = EXCLUDED.updated_at
        RETURNING updated_at
    `, string(key), note, now()).Scan(&n.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert daily note", zap.Error(err))
		return model.DailyNote{}, classifyPostgres(err, "daily note")
	}
	return n, nil
}

func (r *PostgresStore) GetGlobalNote(ctx context.Context) (model.GlobalNote, error) {
	defer observe("get", "global_notes", time.Now())

	var n model.GlobalNote
	err := r.db.QueryRow(ctx, `SELECT content, updated_at FROM global_notes ORDER BY id DESC LIMIT 1`).
		Scan(&n.Content, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GlobalNote{}, nil
	}
	if err != nil {
		r.logger.Error("Failed to get global note", zap.Error(err))
		return model.GlobalNote{}, classifyPostgres(err, "global note")
	}
	return n, nil
}

func (r *PostgresStore) UpsertGlobalNote(ctx context.Context, content string) (model.GlobalNote, error) {
	defer observe("insert", "global_notes", time.Now())
	r.logger.Debug("Saving global note", zap.Int("length", len(content)))

	n := model.GlobalNote{Content: content}
	err := r.db.QueryRow(ctx, `
        INSERT INTO global_notes (content, updated_at)
        VALUES ($1, $2)
        RETURNING updated_at
    `, content, now()).Scan(&n.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to save global note", zap.Error(err))
		return model.GlobalNote{}, classifyPostgres(err, "global note")
	}
	return n, nil
}

func (r *PostgresStore) Stats(ctx context.Context) (model.StoreStats, error) {
	defer observe("stats", "habit_logs", time.Now())

	var s model.StoreStats
	err := r.db.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM habits),
            (SELECT COUNT(*) FROM habit_logs WHERE completed),
            (SELECT COUNT(DISTINCT date_key) FROM habit_logs)
    `).Scan(&s.Habits, &s.CompletedLogs, &s.LoggedDays)
	if err != nil {
		r.logger.Error("Failed to read stats", zap.Error(err))
		return model.StoreStats{}, classifyPostgres(err, "stats")
	}
	return s, nil
}

func (r *PostgresStore) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return apperr.StoreUnavailable(err)
	}
	return nil
}

func (r *PostgresStore) Close() error {
	r.db.Close()
	return nil
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
}

var _ Store = (*PostgresStore)(nil)
