package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"habitsync/pkg/trace"
)

func TestWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	WithTrace(context.Background(), base).Info("no trace")
	WithTrace(trace.WithContext(context.Background(), "abc"), base).Info("traced")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "trace_id")
	assert.Equal(t, "abc", entries[1].ContextMap()["trace_id"])
}

func TestNewLoggerLevel(t *testing.T) {
	l := NewLogger("warn")
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
	assert.Same(t, l, Log)
}
