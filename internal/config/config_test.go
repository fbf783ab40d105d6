package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[postgres]
host = "db.internal"
database = "positiond"
user = "positiond"

[redis]
addr = "cache.internal:6379"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 30, cfg.Engine.LockTTLSeconds)
	assert.Equal(t, 16, cfg.Engine.MaxConcurrentEvaluations)
	assert.Equal(t, 5, cfg.Engine.TickIntervalSeconds)
	assert.Equal(t, "SOL", cfg.Engine.BaseTokenSymbol)
	assert.Equal(t, "info", cfg.LogLevel)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[postgres]
host = "db.internal"
database = "positiond"
user = "positiond"

[redis]
addr = "cache.internal:6379"
`)

	t.Setenv("POSITIOND_REDIS_ADDR", "override:6380")
	t.Setenv("POSITIOND_ENGINE_LOCK_TTL_SECONDS", "45")
	t.Setenv("POSITIOND_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "override:6380", cfg.Redis.Addr)
	assert.Equal(t, 45, cfg.Engine.LockTTLSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Host = "db"
	cfg.Postgres.Database = "positiond"
	cfg.Postgres.User = "positiond"
	require.NoError(t, cfg.Validate())

	cfg.Engine.LockTTLSeconds = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_ttl_seconds")

	cfg = Defaults()
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Engine.TickIntervalSeconds = -1
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_interval_seconds")

	cfg = Defaults()
	assert.Error(t, cfg.Validate(), "missing postgres connection details")
}

func TestDurationHelpers(t *testing.T) {
	e := EngineConfig{LockTTLSeconds: 30, TickIntervalSeconds: 5}
	assert.Equal(t, 30*time.Second, e.LockTTL())
	assert.Equal(t, 5*time.Second, e.TickInterval())
}
