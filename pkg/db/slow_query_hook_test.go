package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSlowQueryTracer(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tracer := NewSlowQueryTracer(zap.New(core), 50*time.Millisecond)

	clock := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tracer.now = func() time.Time { return clock }

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	clock = clock.Add(10 * time.Millisecond)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 0, logs.Len())

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT * FROM habit_logs"})
	clock = clock.Add(time.Second)
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
	if assert.Equal(t, 1, logs.Len()) {
		entry := logs.All()[0]
		assert.Equal(t, "slow-query", entry.Message)
		assert.Equal(t, "SELECT * FROM habit_logs", entry.ContextMap()["sql"])
	}

	// No start data in the context.
	tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
	assert.Equal(t, 1, logs.Len())
}

func TestTruncateSQL(t *testing.T) {
	assert.Equal(t, "unknown", truncateSQL(""))
	long := strings.Repeat("x", 250)
	assert.Len(t, truncateSQL(long), 203)
}
