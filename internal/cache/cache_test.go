package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T, configs ...PoolConfig) *Manager {
	t.Helper()
	if len(configs) == 0 {
		configs = DefaultPools()
	}
	m := New(configs)
	t.Cleanup(m.Close)
	return m
}

func TestWrap(t *testing.T) {
	t.Run("hit before TTL returns cached value without second origin call", func(t *testing.T) {
		m := testManager(t)

		var calls int64
		fn := m.Wrap(PoolLeads, func(args ...interface{}) string {
			return Key(args...)
		}, func(ctx context.Context, args ...interface{}) (interface{}, error) {
			atomic.AddInt64(&calls, 1)
			return "lead-42", nil
		}, 0)

		v1, err := fn(context.Background(), 42)
		require.NoError(t, err)
		v2, err := fn(context.Background(), 42)
		require.NoError(t, err)

		assert.Equal(t, "lead-42", v1)
		assert.Equal(t, v1, v2)
		assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

		snap := m.Metrics()
		assert.EqualValues(t, 1, snap.Hits)
		assert.EqualValues(t, 1, snap.Misses, "a served hit must not re-count the miss")
		assert.EqualValues(t, 1, snap.Sets)
	})

	t.Run("expired entry invokes origin again", func(t *testing.T) {
		m := testManager(t, PoolConfig{Name: "short", TTL: 10 * time.Millisecond, MaxEntries: 10})

		var calls int64
		fn := m.Wrap("short", func(args ...interface{}) string { return "k" },
			func(ctx context.Context, args ...interface{}) (interface{}, error) {
				return atomic.AddInt64(&calls, 1), nil
			}, 0)

		_, err := fn(context.Background())
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
		v, err := fn(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 2, v)
	})

	t.Run("ttl override takes precedence over pool default", func(t *testing.T) {
		m := testManager(t, PoolConfig{Name: "p", TTL: time.Hour, MaxEntries: 10})

		var calls int64
		fn := m.Wrap("p", func(args ...interface{}) string { return "k" },
			func(ctx context.Context, args ...interface{}) (interface{}, error) {
				return atomic.AddInt64(&calls, 1), nil
			}, 10*time.Millisecond)

		_, err := fn(context.Background())
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
		_, err = fn(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
	})

	t.Run("origin error is not cached", func(t *testing.T) {
		m := testManager(t)

		var calls int64
		fn := m.Wrap(PoolLeads, func(args ...interface{}) string { return "err-key" },
			func(ctx context.Context, args ...interface{}) (interface{}, error) {
				if atomic.AddInt64(&calls, 1) == 1 {
					return nil, fmt.Errorf("origin down")
				}
				return "recovered", nil
			}, 0)

		_, err := fn(context.Background())
		require.Error(t, err)
		v, err := fn(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "recovered", v)
	})

	t.Run("concurrent misses share one origin call", func(t *testing.T) {
		m := testManager(t)

		var calls int64
		fn := m.Wrap(PoolQueries, func(args ...interface{}) string { return "herd" },
			func(ctx context.Context, args ...interface{}) (interface{}, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(50 * time.Millisecond)
				return "value", nil
			}, 0)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := fn(context.Background())
				assert.NoError(t, err)
				assert.Equal(t, "value", v)
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, atomic.LoadInt64(&calls), "thundering herd must collapse to one origin call")
	})
}

func TestPoolEviction(t *testing.T) {
	t.Run("entry count never exceeds the configured maximum", func(t *testing.T) {
		m := testManager(t, PoolConfig{Name: "bounded", TTL: time.Hour, MaxEntries: 3})

		for i := 0; i < 10; i++ {
			m.Set("bounded", fmt.Sprintf("k%d", i), i, 0)
		}

		p, err := m.pool("bounded")
		require.NoError(t, err)
		assert.Equal(t, 3, p.len())
	})

	t.Run("oldest entry evicted first", func(t *testing.T) {
		m := testManager(t, PoolConfig{Name: "bounded", TTL: time.Hour, MaxEntries: 2})

		m.Set("bounded", "a", 1, 0)
		m.Set("bounded", "b", 2, 0)
		m.Set("bounded", "c", 3, 0)

		_, ok := m.Get("bounded", "a")
		assert.False(t, ok, "oldest entry should be gone")
		_, ok = m.Get("bounded", "b")
		assert.True(t, ok)
		_, ok = m.Get("bounded", "c")
		assert.True(t, ok)
	})

	t.Run("expired entries evicted before live ones", func(t *testing.T) {
		m := testManager(t, PoolConfig{Name: "bounded", TTL: time.Hour, MaxEntries: 2})

		m.Set("bounded", "stale", 1, time.Millisecond)
		m.Set("bounded", "live", 2, 0)
		time.Sleep(5 * time.Millisecond)
		m.Set("bounded", "new", 3, 0)

		_, ok := m.Get("bounded", "live")
		assert.True(t, ok, "live entry must survive when an expired one can go instead")
		_, ok = m.Get("bounded", "new")
		assert.True(t, ok)
	})

	t.Run("janitor sweeps expired entries", func(t *testing.T) {
		m := testManager(t, PoolConfig{Name: "swept", TTL: 5 * time.Millisecond, CheckInterval: 10 * time.Millisecond, MaxEntries: 10})

		m.Set("swept", "k", 1, 0)
		assert.Eventually(t, func() bool {
			p, err := m.pool("swept")
			if err != nil {
				return false
			}
			return p.len() == 0
		}, time.Second, 5*time.Millisecond)
	})
}

func TestInvalidation(t *testing.T) {
	seed := func(m *Manager) {
		m.Set(PoolLeads, EntityKey("lead", 7), "lead-7", 0)
		m.Set(PoolLeads, EntityKey("lead", 8), "lead-8", 0)
		m.Set(PoolContacts, EntityKey("contact", 1), "contact-1", 0)
		m.Set(PoolCallLogs, EntityKey("callLog", 1), "call-1", 0)
		m.Set(PoolStats, "dashboard", "stats", 0)
		m.Set(PoolQueries, "leads:list:all", "list", 0)
	}

	t.Run("lead invalidation clears direct key and cascade targets only", func(t *testing.T) {
		m := testManager(t)
		seed(m)

		m.InvalidateLead(7)

		_, ok := m.Get(PoolLeads, EntityKey("lead", 7))
		assert.False(t, ok, "direct key cleared")
		_, ok = m.Get(PoolLeads, EntityKey("lead", 8))
		assert.True(t, ok, "sibling lead untouched")
		_, ok = m.Get(PoolQueries, "leads:list:all")
		assert.False(t, ok, "list-query pool flushed")
		_, ok = m.Get(PoolStats, "dashboard")
		assert.False(t, ok, "stats pool flushed")
		_, ok = m.Get(PoolContacts, EntityKey("contact", 1))
		assert.True(t, ok, "unrelated pool untouched")
		_, ok = m.Get(PoolCallLogs, EntityKey("callLog", 1))
		assert.True(t, ok, "unrelated pool untouched")
	})

	t.Run("call log invalidation does not flush the query pool", func(t *testing.T) {
		m := testManager(t)
		seed(m)

		m.InvalidateCallLog(1)

		_, ok := m.Get(PoolCallLogs, EntityKey("callLog", 1))
		assert.False(t, ok)
		_, ok = m.Get(PoolQueries, "leads:list:all")
		assert.True(t, ok)
		_, ok = m.Get(PoolStats, "dashboard")
		assert.False(t, ok)
	})

	t.Run("InvalidateAll flushes every pool", func(t *testing.T) {
		m := testManager(t)
		seed(m)

		m.InvalidateAll()

		for _, name := range m.PoolNames() {
			p, err := m.pool(name)
			require.NoError(t, err)
			assert.Zero(t, p.len(), "pool %s should be empty", name)
		}
	})
}

func TestHealth(t *testing.T) {
	m := testManager(t)
	m.Set(PoolLeads, "a", 1, 0)
	m.Set(PoolLeads, "b", 2, 0)
	m.Get(PoolLeads, "a")
	m.Get(PoolLeads, "missing")

	report := m.Health()

	assert.Equal(t, "healthy", report.Status)
	assert.Len(t, report.Pools, len(DefaultPools()))

	var leads *PoolReport
	for i := range report.Pools {
		if report.Pools[i].Name == PoolLeads {
			leads = &report.Pools[i]
		}
	}
	require.NotNil(t, leads)
	assert.Equal(t, 2, leads.Keys)
	assert.InDelta(t, 0.5, report.Metrics.HitRate, 0.001)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("lead", 1, "qualified"), Key("lead", 1, "qualified"))
	assert.NotEqual(t, Key("lead", 1), Key("lead", 2))
	assert.NotEqual(t, Key("lead", 12), Key("lead", 1, 2))
}

func TestResetMetrics(t *testing.T) {
	m := testManager(t)
	m.Set(PoolLeads, "a", 1, 0)
	m.Get(PoolLeads, "a")

	m.ResetMetrics()

	snap := m.Metrics()
	assert.Zero(t, snap.Hits)
	assert.Zero(t, snap.Misses)
	assert.Zero(t, snap.Sets)
}
