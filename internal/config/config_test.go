package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogulcanaydogan/finalert/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "sql", cfg.Check.LockBackend)
	assert.Equal(t, 10*time.Minute, cfg.Check.LockTTL)
	assert.Equal(t, 24*time.Hour, cfg.Check.DedupWindow)
	assert.Equal(t, 5*time.Minute, cfg.Check.Timeout)
	assert.Equal(t, "high", cfg.Alerts.MinPriority)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, cfg.Storage.Path, cfg.DSN())
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte(`
storage:
  driver: postgres
  dsn: postgres://finalert@localhost/finalert
check:
  lock_backend: redis
  dedup_window: 6h
server:
  listen: ":9090"
logging:
  level: debug
  format: console
alerts:
  min_priority: normal
`)
	require.NoError(t, os.WriteFile(cfgPath, data, 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://finalert@localhost/finalert", cfg.DSN())
	assert.Equal(t, "redis", cfg.Check.LockBackend)
	assert.Equal(t, 6*time.Hour, cfg.Check.DedupWindow)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "normal", cfg.Alerts.MinPriority)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FINALERT_LOGGING_LEVEL", "error")
	t.Setenv("FINALERT_SERVER_LISTEN", ":7070")
	t.Setenv("FINALERT_CHECK_DEDUP_WINDOW", "0s")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, time.Duration(0), cfg.Check.DedupWindow)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("invalid: [yaml"), 0o644))

	_, err := config.Load(cfgPath)
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"driver", "storage:\n  driver: oracle\n", "storage.driver"},
		{"postgres without dsn", "storage:\n  driver: postgres\n", "storage.dsn"},
		{"lock backend", "check:\n  lock_backend: etcd\n", "check.lock_backend"},
		{"priority", "alerts:\n  min_priority: urgent\n", "alerts.min_priority"},
		{"slack url", "alerts:\n  slack:\n    enabled: true\n", "webhook_url"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"timeout", "check:\n  timeout: 0s\n", "check.timeout"},
		{"lease shorter than run", "check:\n  lock_ttl: 1m\n  timeout: 5m\n", "check.lock_ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(cfgPath, []byte(tt.yaml), 0o644))

			_, err := config.Load(cfgPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FINALERT_REDIS_ADDR=redis.internal:6380\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Cleanup(func() { _ = os.Unsetenv("FINALERT_REDIS_ADDR") })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("FINALERT_STORAGE_PATH", "~/data/finalert.db")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "finalert.db"), cfg.Storage.Path)
}
