package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  driver: postgres
  host: pg
server:
  port: "8080"
tracker:
  timezone: Europe/Berlin
sync:
  relay: redis
`), 0o600))
	t.Setenv("TRACKER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "pg", cfg.DB.Host)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "Asia/Tokyo", cfg.Tracker.Timezone)
	assert.Equal(t, 365, cfg.Tracker.HistoryDays)
	assert.Equal(t, "redis", cfg.Sync.Relay)
	assert.Equal(t, 64, cfg.Sync.QueueSize)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "UTC", cfg.Tracker.Timezone)
	assert.Equal(t, "none", cfg.Sync.Relay)
}
