package db

import (
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"contactops/internal/config"
)

// connectAttempts bounds the startup retry loop. Transient infra errors
// (connection refused, timeout) are retried with exponential backoff;
// after the last attempt the error is returned and the caller treats it
// as fatal.
const connectAttempts = 5

// Connect opens a GORM database connection using APP_DATABASE_URL
// (PostgreSQL URL), retrying transient failures with exponential
// backoff, and sizes the underlying connection pool from config.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	if cfg.DBSSL && !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=require"
		} else {
			dsn += "?sslmode=require"
		}
	}

	var (
		gdb *gorm.DB
		err error
	)
	backoff := time.Second
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		// PrepareStmt: true prevents the GORM postgres migrator from forcing
		// simple protocol for "SELECT * FROM table LIMIT 1", which would
		// otherwise trigger "insufficient arguments".
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			return nil, err
		}
		log.Printf("database connect attempt %d/%d failed: %v (retrying in %s)", attempt, connectAttempts, err, backoff)
		time.Sleep(backoff)
		backoff *= 2
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)

	return gdb, nil
}

// Migrate auto-migrates the core CRM tables.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&Lead{}, &Contact{}, &CallLog{})
}
