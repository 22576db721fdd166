// Package cache provides named in-memory TTL key/value pools keyed by
// domain entity type, with bounded entry counts and hit/miss metrics.
package cache

import (
	"container/list"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// PoolConfig describes one named cache pool.
type PoolConfig struct {
	Name string

	// TTL applied to entries stored without an override.
	TTL time.Duration

	// CheckInterval is how often the janitor sweeps expired entries.
	CheckInterval time.Duration

	// MaxEntries bounds the pool; oldest/expired entries are evicted
	// first when the bound is reached.
	MaxEntries int
}

// Pool names used across the service.
const (
	PoolLeads    = "leads"
	PoolContacts = "contacts"
	PoolCallLogs = "callLogs"
	PoolStats    = "stats"
	PoolQueries  = "queries"
)

// DefaultPools returns the pool set the service runs with.
func DefaultPools() []PoolConfig {
	return []PoolConfig{
		{Name: PoolLeads, TTL: 5 * time.Minute, CheckInterval: time.Minute, MaxEntries: 1000},
		{Name: PoolContacts, TTL: 5 * time.Minute, CheckInterval: time.Minute, MaxEntries: 1000},
		{Name: PoolCallLogs, TTL: 2 * time.Minute, CheckInterval: 30 * time.Second, MaxEntries: 2000},
		{Name: PoolStats, TTL: time.Minute, CheckInterval: 30 * time.Second, MaxEntries: 100},
		{Name: PoolQueries, TTL: 2 * time.Minute, CheckInterval: time.Minute, MaxEntries: 500},
	}
}

type entry struct {
	key      string
	value    interface{}
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.storedAt.Add(e.ttl))
}

// pool is one named TTL map with insertion-ordered eviction.
type pool struct {
	mu    sync.Mutex
	cfg   PoolConfig
	items map[string]*list.Element
	order *list.List // front = newest, back = oldest
}

func newPool(cfg PoolConfig) *pool {
	return &pool{
		cfg:   cfg,
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

func (p *pool) get(key string) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.items[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*entry)
	if e.expired(time.Now()) {
		p.remove(elem)
		return nil, false
	}
	return e.value, true
}

func (p *pool) set(key string, value interface{}, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.storedAt = time.Now()
		e.ttl = ttl
		p.order.MoveToFront(elem)
		return
	}

	// Honor the entry bound: sweep expired first, then the oldest.
	now := time.Now()
	for p.order.Len() >= p.cfg.MaxEntries {
		if !p.evictOneExpired(now) {
			p.evictOldest()
		}
	}

	e := &entry{key: key, value: value, storedAt: now, ttl: ttl}
	p.items[key] = p.order.PushFront(e)
}

func (p *pool) delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.items[key]
	if !ok {
		return false
	}
	p.remove(elem)
	return true
}

func (p *pool) flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.order.Len()
	p.items = make(map[string]*list.Element)
	p.order.Init()
	return n
}

func (p *pool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

func (p *pool) sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed int
	for elem := p.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*entry).expired(now) {
			p.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// evictOneExpired removes a single expired entry scanning from the
// oldest end. Caller must hold the lock.
func (p *pool) evictOneExpired(now time.Time) bool {
	for elem := p.order.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*entry).expired(now) {
			p.remove(elem)
			return true
		}
	}
	return false
}

// Caller must hold the lock.
func (p *pool) evictOldest() {
	if elem := p.order.Back(); elem != nil {
		p.remove(elem)
	}
}

// Caller must hold the lock.
func (p *pool) remove(elem *list.Element) {
	p.order.Remove(elem)
	delete(p.items, elem.Value.(*entry).key)
}

// Manager owns the pool set. Construct once at process start and pass
// by handle to all consumers; there is no ambient singleton.
type Manager struct {
	mu      sync.RWMutex
	pools   map[string]*pool
	metrics *Metrics
	stop    chan struct{}
	once    sync.Once
	flight  flightGroup
}

// New builds a Manager with the given pools and starts one janitor
// goroutine per pool at its configured check interval.
func New(configs []PoolConfig) *Manager {
	m := &Manager{
		pools:   make(map[string]*pool, len(configs)),
		metrics: newMetrics(),
		stop:    make(chan struct{}),
	}
	for _, cfg := range configs {
		if cfg.MaxEntries <= 0 {
			cfg.MaxEntries = 1000
		}
		p := newPool(cfg)
		m.pools[cfg.Name] = p
		if cfg.CheckInterval > 0 {
			go m.janitor(p)
		}
	}
	return m
}

func (m *Manager) janitor(p *pool) {
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case t := <-ticker.C:
			p.sweep(t)
		}
	}
}

// Close stops the janitor goroutines. Pools remain usable.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Manager) pool(name string) (*pool, error) {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache pool %q", name)
	}
	return p, nil
}

// Get returns the live value stored under key in the named pool.
func (m *Manager) Get(poolName, key string) (interface{}, bool) {
	p, err := m.pool(poolName)
	if err != nil {
		return nil, false
	}
	v, ok := p.get(key)
	if ok {
		m.metrics.hit(poolName)
	} else {
		m.metrics.miss(poolName)
	}
	return v, ok
}

// peek reads a pool without touching the hit/miss counters. Used for
// the post-singleflight double check.
func (m *Manager) peek(poolName, key string) (interface{}, bool) {
	p, err := m.pool(poolName)
	if err != nil {
		return nil, false
	}
	return p.get(key)
}

// Set stores value under the pool's default TTL; a positive ttlOverride
// takes precedence.
func (m *Manager) Set(poolName, key string, value interface{}, ttlOverride time.Duration) {
	p, err := m.pool(poolName)
	if err != nil {
		return
	}
	ttl := p.cfg.TTL
	if ttlOverride > 0 {
		ttl = ttlOverride
	}
	p.set(key, value, ttl)
	m.metrics.set(poolName)
}

// Delete removes a single key from the named pool.
func (m *Manager) Delete(poolName, key string) {
	p, err := m.pool(poolName)
	if err != nil {
		return
	}
	if p.delete(key) {
		m.metrics.delete(poolName)
	}
}

// Flush clears every entry in the named pool and returns the number of
// entries removed.
func (m *Manager) Flush(poolName string) int {
	p, err := m.pool(poolName)
	if err != nil {
		return 0
	}
	return p.flush()
}

// PoolNames returns the configured pool names.
func (m *Manager) PoolNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	return names
}

// Key derives a deterministic cache key from logical identity parts.
// Composite query parameters hash through fnv, matching how serialized
// query keys stay bounded in length.
func Key(parts ...interface{}) string {
	h := fnv.New64a()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	return fmt.Sprintf("%x", h.Sum64())
}
