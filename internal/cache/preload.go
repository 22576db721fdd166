package cache

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	dbpkg "contactops/internal/db"
)

// Preload opportunistically warms the pools with high-value entries at
// startup: high-priority leads and the rolling 24h window of call logs.
// Failures are logged and never fatal; the cold path stays correct.
func (m *Manager) Preload(ctx context.Context, gdb *gorm.DB) {
	if err := m.preloadHighPriorityLeads(ctx, gdb); err != nil {
		log.Printf("cache preload (leads) skipped: %v", err)
	}
	if err := m.preloadRecentCallLogs(ctx, gdb); err != nil {
		log.Printf("cache preload (call logs) skipped: %v", err)
	}
}

func (m *Manager) preloadHighPriorityLeads(ctx context.Context, gdb *gorm.DB) error {
	var leads []dbpkg.Lead
	err := gdb.WithContext(ctx).
		Where("priority = ?", "high").
		Order("updated_at DESC").
		Limit(100).
		Find(&leads).Error
	if err != nil {
		return err
	}
	for i := range leads {
		m.Set(PoolLeads, EntityKey("lead", leads[i].ID), &leads[i], 0)
	}
	log.Printf("cache preload: %d high-priority leads", len(leads))
	return nil
}

func (m *Manager) preloadRecentCallLogs(ctx context.Context, gdb *gorm.DB) error {
	since := time.Now().Add(-24 * time.Hour)
	var logs []dbpkg.CallLog
	err := gdb.WithContext(ctx).
		Where("initiated_at >= ?", since).
		Order("initiated_at DESC").
		Limit(500).
		Find(&logs).Error
	if err != nil {
		return err
	}
	for i := range logs {
		m.Set(PoolCallLogs, EntityKey("callLog", logs[i].ID), &logs[i], 0)
	}
	log.Printf("cache preload: %d call logs from the last 24h", len(logs))
	return nil
}
