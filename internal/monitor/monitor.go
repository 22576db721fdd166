// Package monitor intercepts every query execution, classifies and
// aggregates timing, and retains a bounded buffer of slow samples.
package monitor

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"
)

// QueryType is the coarse classification of a SQL statement.
type QueryType string

const (
	TypeSelect QueryType = "SELECT"
	TypeInsert QueryType = "INSERT"
	TypeUpdate QueryType = "UPDATE"
	TypeDelete QueryType = "DELETE"
	TypeCreate QueryType = "CREATE"
	TypeDrop   QueryType = "DROP"
	TypeAlter  QueryType = "ALTER"
	TypeOther  QueryType = "OTHER"
)

// DefaultSlowThreshold is applied when the configured threshold is zero.
const DefaultSlowThreshold = 1000 * time.Millisecond

// DefaultSampleCapacity bounds the retained slow-sample ring buffer.
// Only retained samples are bounded; aggregate counters never evict.
const DefaultSampleCapacity = 100

// maxSampleSQL caps the query text stored per retained sample.
const maxSampleSQL = 200

// QuerySample is one retained slow-query record.
type QuerySample struct {
	SQL       string        `json:"sql"`
	Type      QueryType     `json:"type"`
	Table     string        `json:"table,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
	Err       string        `json:"error,omitempty"`
}

// HealthStatus is the monitor's three-level health classification.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Pinger is the connectivity probe used by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor aggregates query telemetry. All mutation goes through Record,
// guarded by a single mutex so counters keep single-writer semantics
// under true parallelism.
type Monitor struct {
	mu sync.Mutex

	threshold time.Duration

	totalQueries  int64
	totalErrors   int64
	slowQueries   int64
	totalDuration time.Duration
	byType        map[QueryType]int64

	// samples is a fixed-capacity ring; next points at the slot the
	// next slow sample overwrites.
	samples []QuerySample
	next    int
	filled  bool
}

// New creates a Monitor with the given slow-query threshold.
func New(threshold time.Duration) *Monitor {
	if threshold <= 0 {
		threshold = DefaultSlowThreshold
	}
	return &Monitor{
		threshold: threshold,
		byType:    make(map[QueryType]int64),
		samples:   make([]QuerySample, 0, DefaultSampleCapacity),
	}
}

// Record registers one query execution. Slow executions are appended to
// the ring buffer and logged synchronously with query completion, so no
// slow query is lost before being counted.
func (m *Monitor) Record(sql string, duration time.Duration, execErr error) {
	qt := Classify(sql)
	table := ExtractTable(sql)

	m.mu.Lock()
	m.totalQueries++
	m.totalDuration += duration
	m.byType[qt]++
	if execErr != nil {
		m.totalErrors++
	}

	slow := duration > m.threshold
	if slow {
		m.slowQueries++
		sample := QuerySample{
			SQL:       truncate(sql, maxSampleSQL),
			Type:      qt,
			Table:     table,
			Duration:  duration,
			Timestamp: time.Now(),
		}
		if execErr != nil {
			sample.Err = execErr.Error()
		}
		if len(m.samples) < DefaultSampleCapacity {
			m.samples = append(m.samples, sample)
		} else {
			m.samples[m.next] = sample
			m.filled = true
		}
		m.next = (m.next + 1) % DefaultSampleCapacity
	}
	m.mu.Unlock()

	observeQuery(qt, duration, slow, execErr != nil)

	if slow {
		log.Printf("slow query (%s, %s, %v): %s", qt, table, duration, truncate(sql, maxSampleSQL))
	}
}

// Threshold returns the configured slow-query threshold.
func (m *Monitor) Threshold() time.Duration { return m.threshold }

// Samples returns the retained slow samples, oldest first.
func (m *Monitor) Samples() []QuerySample {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]QuerySample, 0, len(m.samples))
	if m.filled {
		out = append(out, m.samples[m.next:]...)
		out = append(out, m.samples[:m.next]...)
	} else {
		out = append(out, m.samples...)
	}
	return out
}

// Stats is the O(1) aggregate view of the monitor's counters.
type Stats struct {
	TotalQueries    int64               `json:"total_queries"`
	TotalErrors     int64               `json:"total_errors"`
	SlowQueries     int64               `json:"slow_queries"`
	RetainedSamples int                 `json:"retained_samples"`
	AvgDurationMs   float64             `json:"avg_duration_ms"`
	ByType          map[QueryType]int64 `json:"by_type"`
}

// Stats returns the aggregate counters. Always computable in O(1) from
// counters; never touches the ring buffer beyond its length.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		TotalQueries:    m.totalQueries,
		TotalErrors:     m.totalErrors,
		SlowQueries:     m.slowQueries,
		RetainedSamples: len(m.samples),
		ByType:          make(map[QueryType]int64, len(m.byType)),
	}
	for k, v := range m.byType {
		s.ByType[k] = v
	}
	if m.totalQueries > 0 {
		s.AvgDurationMs = float64(m.totalDuration.Milliseconds()) / float64(m.totalQueries)
	}
	return s
}

// Reset clears all counters and retained samples. Operator action only.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalQueries = 0
	m.totalErrors = 0
	m.slowQueries = 0
	m.totalDuration = 0
	m.byType = make(map[QueryType]int64)
	m.samples = m.samples[:0]
	m.next = 0
	m.filled = false
}

// Health combines a connectivity round trip, slow-sample pressure, and
// average query time into a three-level status. It downgrades rather
// than erroring so monitoring integrations can poll safely.
type Health struct {
	Status          HealthStatus  `json:"status"`
	PingRTT         time.Duration `json:"ping_rtt_ms"`
	PingError       string        `json:"ping_error,omitempty"`
	HighSeverity    int           `json:"high_severity_issues"`
	AvgDurationMs   float64       `json:"avg_duration_ms"`
	RetainedSamples int           `json:"retained_samples"`
}

// highSeveritySlowCount is the retained-sample count at which the
// monitor reports a degraded database.
const highSeveritySlowCount = 50

func (m *Monitor) Health(ctx context.Context, p Pinger) Health {
	h := Health{Status: StatusHealthy}

	start := time.Now()
	if err := p.Ping(ctx); err != nil {
		h.Status = StatusUnhealthy
		h.PingError = err.Error()
		return h
	}
	h.PingRTT = time.Since(start)

	s := m.Stats()
	h.AvgDurationMs = s.AvgDurationMs
	h.RetainedSamples = s.RetainedSamples
	h.HighSeverity = s.RetainedSamples

	if s.RetainedSamples >= highSeveritySlowCount || time.Duration(s.AvgDurationMs)*time.Millisecond > m.threshold {
		h.Status = StatusDegraded
	}
	return h
}

// Classify maps a statement to its query type by case-insensitive
// prefix match. Anything unmatched is OTHER.
func Classify(sql string) QueryType {
	s := strings.ToUpper(strings.TrimSpace(sql))
	for _, qt := range []QueryType{TypeSelect, TypeInsert, TypeUpdate, TypeDelete, TypeCreate, TypeDrop, TypeAlter} {
		if strings.HasPrefix(s, string(qt)) {
			return qt
		}
	}
	return TypeOther
}

var tableRe = regexp.MustCompile(`(?i)(?:FROM|INTO|UPDATE)\s+["']?([a-zA-Z_][a-zA-Z0-9_.]*)`)

// ExtractTable makes a best-effort guess at the table a statement
// touches. Advisory only: a non-match returns "" and must never block
// execution.
func ExtractTable(sql string) string {
	m := tableRe.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	name := m[1]
	// Strip a schema qualifier if present.
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
