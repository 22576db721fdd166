// Package orchestrator composes the data-layer services: it sequences
// startup, exposes a unified stats/health surface, and owns shutdown.
package orchestrator

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"gorm.io/gorm"

	"contactops/internal/advisor"
	"contactops/internal/backup"
	"contactops/internal/cache"
	"contactops/internal/config"
	dbpkg "contactops/internal/db"
	"contactops/internal/monitor"
)

// Orchestrator holds every service handle. Constructed once at process
// start and passed by reference to consumers; no ambient singletons.
type Orchestrator struct {
	cfg *config.Config

	DB      *gorm.DB
	Catalog *dbpkg.Catalog
	Cache   *cache.Manager
	Monitor *monitor.Monitor
	Advisor *advisor.Advisor
	Backups *backup.Engine

	stop chan struct{}
	once sync.Once

	mu         sync.Mutex
	lastBackup *backup.Summary
}

// Start runs the startup sequence: connect (with bounded backoff) →
// migrate → initialize models → start monitor → preload cache → health
// check. Preload failures are logged, never fatal; connect and migrate
// failures are.
func Start(ctx context.Context, cfg *config.Config) (*Orchestrator, error) {
	gdb, err := dbpkg.Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := dbpkg.Migrate(gdb); err != nil {
		return nil, err
	}

	mon := monitor.New(cfg.SlowQueryThreshold)
	if err := gdb.Use(monitor.NewPlugin(mon)); err != nil {
		return nil, err
	}

	catalog := dbpkg.NewCatalog(gdb)

	o := &Orchestrator{
		cfg:     cfg,
		DB:      gdb,
		Catalog: catalog,
		Cache:   cache.New(cache.DefaultPools()),
		Monitor: mon,
		Advisor: advisor.New(catalog, catalog),
		Backups: backup.New(catalog, backup.Config{
			Dir:           cfg.BackupDir,
			Environment:   cfg.Environment,
			Database:      databaseName(cfg.DatabaseURL),
			Compress:      cfg.BackupCompress,
			RetentionDays: cfg.BackupRetentionDays,
		}),
		stop: make(chan struct{}),
	}

	o.Backups.StartRetentionWorker(o.stop)
	o.Cache.Preload(ctx, gdb)

	h := o.Health(ctx)
	log.Printf("startup health: %s (db rtt %s)", h.Status, h.Database.PingRTT)
	return o, nil
}

// databaseName extracts the database identifier from the connection
// URL for backup manifests; falls back to the product name.
func databaseName(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || len(u.Path) <= 1 {
		return backup.Product
	}
	return u.Path[1:]
}

// Stats is the unified operational view.
type Stats struct {
	Cache      cache.HealthReport `json:"cache"`
	Queries    monitor.Stats      `json:"queries"`
	LastBackup *backup.Summary    `json:"last_backup,omitempty"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	last := o.lastBackup
	o.mu.Unlock()
	return Stats{
		Cache:      o.Cache.Health(),
		Queries:    o.Monitor.Stats(),
		LastBackup: last,
	}
}

// Health aggregates component health. The overall status is the worst
// of the parts; it downgrades rather than erroring.
type Health struct {
	Status   monitor.HealthStatus `json:"status"`
	Database monitor.Health       `json:"database"`
	Cache    cache.HealthReport   `json:"cache"`
}

func (o *Orchestrator) Health(ctx context.Context) Health {
	dbHealth := o.Monitor.Health(ctx, o.Catalog)
	cacheHealth := o.Cache.Health()

	status := dbHealth.Status
	if cacheHealth.Status != "healthy" && status == monitor.StatusHealthy {
		status = monitor.StatusDegraded
	}
	return Health{Status: status, Database: dbHealth, Cache: cacheHealth}
}

// RunBackup executes a backup run and remembers its summary for the
// stats surface.
func (o *Orchestrator) RunBackup(ctx context.Context, opts backup.Options) (*backup.Summary, error) {
	summary, err := o.Backups.CreateBackup(ctx, opts)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.lastBackup = summary
	o.mu.Unlock()
	return summary, nil
}

// Shutdown stops background workers and closes the database handle.
func (o *Orchestrator) Shutdown() {
	o.once.Do(func() {
		close(o.stop)
		o.Cache.Close()
		if sqlDB, err := o.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("shutdown: closing database: %v", err)
			}
		}
		log.Printf("shutdown complete")
	})
}

// WaitHealthy polls the health surface until it reports healthy or the
// context expires. Used by deploy tooling after startup.
func (o *Orchestrator) WaitHealthy(ctx context.Context, interval time.Duration) bool {
	for {
		if o.Health(ctx).Status == monitor.StatusHealthy {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}
