package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. Read once at startup.
type Config struct {
	// Environment is a deployment tag (development/staging/production)
	// stamped into backup filenames and manifests.
	Environment string

	DatabaseURL string

	// DBMaxOpenConns / DBMaxIdleConns size the underlying sql.DB pool.
	DBMaxOpenConns int
	DBMaxIdleConns int

	// DBSSL appends sslmode=require to the Postgres DSN when the URL
	// itself does not already carry an sslmode parameter.
	DBSSL bool

	ListenAddr string

	// OpsToken guards the operational HTTP surface. If empty, the
	// authenticated routes are disabled entirely.
	OpsToken string

	// SlowQueryThreshold is the duration above which a query execution
	// is retained as a slow sample and logged.
	SlowQueryThreshold time.Duration

	BackupDir string

	// BackupRetentionDays is the age (in days) after which a whole
	// (type, day) backup group is pruned.
	BackupRetentionDays int

	BackupCompress bool
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	return &Config{
		Environment:         getenv("APP_ENV", "development"),
		DatabaseURL:         os.Getenv("APP_DATABASE_URL"),
		DBMaxOpenConns:      getint("APP_DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:      getint("APP_DB_MAX_IDLE_CONNS", 5),
		DBSSL:               getbool("APP_DB_SSL", false),
		ListenAddr:          getenv("APP_LISTEN_ADDR", ":8080"),
		OpsToken:            getenv("APP_OPS_TOKEN", ""),
		SlowQueryThreshold:  time.Duration(getint("APP_SLOW_QUERY_MS", 1000)) * time.Millisecond,
		BackupDir:           getenv("APP_BACKUP_DIR", "./backups"),
		BackupRetentionDays: getint("APP_BACKUP_RETENTION_DAYS", 7),
		BackupCompress:      getbool("APP_BACKUP_COMPRESS", true),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getint accepts zero: APP_DB_MAX_OPEN_CONNS=0 means an unlimited
// sql.DB pool. Negative or unparseable values fall back to the default.
func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getbool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
