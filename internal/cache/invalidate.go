package cache

import (
	"fmt"
	"log"
)

// cascades maps an entity type to the pools flushed wholesale when one
// of its records is invalidated. List queries cannot be selectively
// addressed, so the whole derived pool goes: correctness over
// partial-invalidation efficiency.
var cascades = map[string][]string{
	"lead":    {PoolQueries, PoolStats},
	"contact": {PoolQueries, PoolStats},
	"callLog": {PoolStats},
}

// EntityKey is the canonical cache key for a single record.
func EntityKey(entity string, id uint) string {
	return fmt.Sprintf("%s:%d", entity, id)
}

func entityPool(entity string) string {
	switch entity {
	case "lead":
		return PoolLeads
	case "contact":
		return PoolContacts
	case "callLog":
		return PoolCallLogs
	}
	return ""
}

// InvalidateEntity clears the record's direct key and flushes every
// cascade-target pool for its entity type. Unrelated pools are never
// touched.
func (m *Manager) InvalidateEntity(entity string, id uint) {
	if pool := entityPool(entity); pool != "" {
		m.Delete(pool, EntityKey(entity, id))
	}
	for _, pool := range cascades[entity] {
		m.Flush(pool)
	}
}

// InvalidateLead clears a lead and its cascade targets (the serialized
// list-query pool and the stats pool).
func (m *Manager) InvalidateLead(id uint) { m.InvalidateEntity("lead", id) }

// InvalidateContact clears a contact and its cascade targets.
func (m *Manager) InvalidateContact(id uint) { m.InvalidateEntity("contact", id) }

// InvalidateCallLog clears a call log and its cascade targets.
func (m *Manager) InvalidateCallLog(id uint) { m.InvalidateEntity("callLog", id) }

// InvalidateAll flushes every pool. Panic-button fallback after bulk
// writes.
func (m *Manager) InvalidateAll() {
	for _, name := range m.PoolNames() {
		if n := m.Flush(name); n > 0 {
			log.Printf("cache: flushed %d entries from pool %s", n, name)
		}
	}
}

// PoolReport reports per-pool entry counts alongside the counter
// snapshot.
type PoolReport struct {
	Name    string `json:"name"`
	Keys    int    `json:"keys"`
	MaxKeys int    `json:"max_keys"`
	TTLSecs int    `json:"ttl_seconds"`
}

// HealthReport is the cache manager's health/metrics view.
type HealthReport struct {
	Status  string       `json:"status"`
	Error   string       `json:"error,omitempty"`
	Pools   []PoolReport `json:"pools"`
	Metrics Snapshot     `json:"metrics"`
}

// Health enumerates the pools and reports healthy unless enumeration
// itself fails, in which case unhealthy with error detail.
func (m *Manager) Health() HealthReport {
	report := HealthReport{Status: "healthy", Metrics: m.metrics.snapshot()}

	for _, name := range m.PoolNames() {
		p, err := m.pool(name)
		if err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			return report
		}
		report.Pools = append(report.Pools, PoolReport{
			Name:    name,
			Keys:    p.len(),
			MaxKeys: p.cfg.MaxEntries,
			TTLSecs: int(p.cfg.TTL.Seconds()),
		})
	}
	return report
}
