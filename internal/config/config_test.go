package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.Equal(t, 5, cfg.DBMaxIdleConns)
	assert.False(t, cfg.DBSSL)
	assert.Equal(t, time.Second, cfg.SlowQueryThreshold)
	assert.Equal(t, "./backups", cfg.BackupDir)
	assert.Equal(t, 7, cfg.BackupRetentionDays)
	assert.True(t, cfg.BackupCompress)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_SLOW_QUERY_MS", "250")
	t.Setenv("APP_BACKUP_RETENTION_DAYS", "30")
	t.Setenv("APP_DB_SSL", "true")
	t.Setenv("APP_BACKUP_COMPRESS", "false")

	cfg := Load()

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryThreshold)
	assert.Equal(t, 30, cfg.BackupRetentionDays)
	assert.True(t, cfg.DBSSL)
	assert.False(t, cfg.BackupCompress)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("APP_SLOW_QUERY_MS", "not-a-number")
	t.Setenv("APP_DB_MAX_OPEN_CONNS", "-3")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.SlowQueryThreshold)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
}

func TestLoadAcceptsZeroPoolSize(t *testing.T) {
	// 0 is meaningful to sql.DB: an unlimited open-connection pool.
	t.Setenv("APP_DB_MAX_OPEN_CONNS", "0")

	cfg := Load()

	assert.Zero(t, cfg.DBMaxOpenConns)
}
