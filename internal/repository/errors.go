package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"habitsync/internal/apperr"
	"habitsync/pkg/util"
)

// classifyPostgres maps pgx errors onto the apperr taxonomy. op names the
// failed operation and prefixes every message.
func classifyPostgres(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s: not found", op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return apperr.Conflict("%s: already exists", op)
		case pgErr.Code == "23503":
			return apperr.NotFound("%s: referenced habit not found", op)
		case strings.HasPrefix(pgErr.Code, "22"):
			return apperr.Validation("%s: %s", op, pgErr.Message)
		// 08 connection exception, 53 insufficient resources, 57P operator intervention
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"), strings.HasPrefix(pgErr.Code, "57P"):
			return apperr.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.SafeToRetry(err) {
		return apperr.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return classifyGeneric(err, op)
}

// classifySQLite maps modernc sqlite errors onto the apperr taxonomy.
func classifySQLite(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s: not found", op)
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return apperr.Conflict("%s: already exists", op)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperr.NotFound("%s: referenced habit not found", op)
		}
		switch code & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED, sqlite3lib.SQLITE_IOERR, sqlite3lib.SQLITE_CANTOPEN, sqlite3lib.SQLITE_FULL:
			return apperr.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return apperr.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return classifyGeneric(err, op)
}

func classifyGeneric(err error, op string) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	// A cancelled or expired request never reached the store's answer.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	if transient, _ := util.IsTransientError(err); transient {
		return apperr.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
