package util

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true, "timeout"},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true, "connection_error"},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true, "db_busy"},
		{"closed", errors.New("sql: database is closed"), true, "db_closed"},
		{"constraint", errors.New("UNIQUE constraint failed: habits.id"), false, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transient, errType := IsTransientError(tt.err)
			assert.Equal(t, tt.transient, transient)
			assert.Equal(t, tt.errType, errType)
		})
	}
}
