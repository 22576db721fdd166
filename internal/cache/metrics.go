package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide cache counters. Reset only by explicit
// operator action.
type Metrics struct {
	hits    int64
	misses  int64
	sets    int64
	deletes int64

	// Cumulative latency of the two paths, for ratio computation.
	cachePathNs  int64
	originPathNs int64
}

func newMetrics() *Metrics {
	initPromMetrics()
	return &Metrics{}
}

func (m *Metrics) hit(pool string) {
	atomic.AddInt64(&m.hits, 1)
	cacheOps.WithLabelValues(pool, "hit").Inc()
}

func (m *Metrics) miss(pool string) {
	atomic.AddInt64(&m.misses, 1)
	cacheOps.WithLabelValues(pool, "miss").Inc()
}

func (m *Metrics) set(pool string) {
	atomic.AddInt64(&m.sets, 1)
	cacheOps.WithLabelValues(pool, "set").Inc()
}

func (m *Metrics) delete(pool string) {
	atomic.AddInt64(&m.deletes, 1)
	cacheOps.WithLabelValues(pool, "delete").Inc()
}

func (m *Metrics) observeCachePath(d time.Duration) {
	atomic.AddInt64(&m.cachePathNs, int64(d))
}

func (m *Metrics) observeOriginPath(d time.Duration) {
	atomic.AddInt64(&m.originPathNs, int64(d))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Sets         int64   `json:"sets"`
	Deletes      int64   `json:"deletes"`
	HitRate      float64 `json:"hit_rate"`
	CachePathMs  int64   `json:"cache_path_ms"`
	OriginPathMs int64   `json:"origin_path_ms"`
}

func (m *Metrics) snapshot() Snapshot {
	s := Snapshot{
		Hits:         atomic.LoadInt64(&m.hits),
		Misses:       atomic.LoadInt64(&m.misses),
		Sets:         atomic.LoadInt64(&m.sets),
		Deletes:      atomic.LoadInt64(&m.deletes),
		CachePathMs:  atomic.LoadInt64(&m.cachePathNs) / int64(time.Millisecond),
		OriginPathMs: atomic.LoadInt64(&m.originPathNs) / int64(time.Millisecond),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (m *Metrics) reset() {
	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.sets, 0)
	atomic.StoreInt64(&m.deletes, 0)
	atomic.StoreInt64(&m.cachePathNs, 0)
	atomic.StoreInt64(&m.originPathNs, 0)
}

// Metrics returns the live counter snapshot.
func (m *Manager) Metrics() Snapshot { return m.metrics.snapshot() }

// ResetMetrics clears all counters. Operator action only.
func (m *Manager) ResetMetrics() { m.metrics.reset() }

var (
	promOnce sync.Once
	cacheOps *prometheus.CounterVec
)

func initPromMetrics() {
	promOnce.Do(func() {
		cacheOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "contactops",
				Name:      "cache_operations_total",
				Help:      "Total cache operations by pool and outcome.",
			},
			[]string{"pool", "op"},
		)
		prometheus.MustRegister(cacheOps)
	})
}
