package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		sql  string
		want QueryType
	}{
		{"SELECT * FROM leads", TypeSelect},
		{"  select id from contacts", TypeSelect},
		{"INSERT INTO leads (name) VALUES ('a')", TypeInsert},
		{"update leads set status = 'won'", TypeUpdate},
		{"DELETE FROM call_logs WHERE id = 1", TypeDelete},
		{"CREATE INDEX idx_leads_email ON leads(email)", TypeCreate},
		{"drop table old_leads", TypeDrop},
		{"ALTER TABLE leads ADD COLUMN score int", TypeAlter},
		{"EXPLAIN SELECT 1", TypeOther},
		{"", TypeOther},
	}
	for _, tc := range cases {
		t.Run(string(tc.want), func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.sql))
		})
	}
}

func TestExtractTable(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM leads WHERE id = 1", "leads"},
		{"select * from public.call_logs", "call_logs"},
		{"INSERT INTO contacts (name) VALUES ('x')", "contacts"},
		{"UPDATE leads SET status = 'won'", "leads"},
		{"SELECT 1", ""},
		{"COMMIT", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractTable(tc.sql), "sql: %s", tc.sql)
	}
}

func TestRecordSlowThreshold(t *testing.T) {
	m := New(1000 * time.Millisecond)

	m.Record("SELECT * FROM leads", 1500*time.Millisecond, nil)
	m.Record("SELECT * FROM contacts", 999*time.Millisecond, nil)
	m.Record("SELECT * FROM contacts", 1000*time.Millisecond, nil)

	samples := m.Samples()
	require.Len(t, samples, 1, "only the 1500ms query exceeds the threshold")
	assert.Equal(t, "leads", samples[0].Table)
	assert.Equal(t, TypeSelect, samples[0].Type)

	s := m.Stats()
	assert.EqualValues(t, 3, s.TotalQueries)
	assert.EqualValues(t, 1, s.SlowQueries)
}

func TestRingBufferBounds(t *testing.T) {
	m := New(time.Millisecond)

	for i := 0; i < DefaultSampleCapacity+5; i++ {
		m.Record(fmt.Sprintf("SELECT %d FROM leads", i), time.Second, nil)
	}

	samples := m.Samples()
	require.Len(t, samples, DefaultSampleCapacity, "retained samples are bounded")
	assert.Contains(t, samples[0].SQL, "SELECT 5 ", "oldest samples evicted first")
	assert.Contains(t, samples[len(samples)-1].SQL, fmt.Sprintf("SELECT %d ", DefaultSampleCapacity+4))

	s := m.Stats()
	assert.EqualValues(t, DefaultSampleCapacity+5, s.SlowQueries, "aggregate counters never evict")
}

func TestRecordErrors(t *testing.T) {
	m := New(time.Second)

	m.Record("SELECT * FROM leads", time.Millisecond, errors.New("relation does not exist"))
	m.Record("SELECT * FROM leads", time.Millisecond, nil)

	s := m.Stats()
	assert.EqualValues(t, 1, s.TotalErrors)
	assert.EqualValues(t, 2, s.TotalQueries)
}

func TestStatsAverage(t *testing.T) {
	m := New(time.Second)
	m.Record("SELECT 1", 100*time.Millisecond, nil)
	m.Record("SELECT 1", 300*time.Millisecond, nil)

	s := m.Stats()
	assert.InDelta(t, 200, s.AvgDurationMs, 0.5)
	assert.EqualValues(t, 2, s.ByType[TypeSelect])
}

func TestTruncatedSampleSQL(t *testing.T) {
	m := New(time.Millisecond)

	long := "SELECT * FROM leads WHERE email IN ("
	for i := 0; i < 100; i++ {
		long += fmt.Sprintf("'user%d@example.com',", i)
	}
	long += "'end@example.com')"
	m.Record(long, time.Second, nil)

	samples := m.Samples()
	require.Len(t, samples, 1)
	assert.LessOrEqual(t, len(samples[0].SQL), maxSampleSQL+3)
}

func TestAnalyze(t *testing.T) {
	m := New(time.Millisecond)

	m.Record("SELECT l.id FROM leads l JOIN contacts c ON c.lead_id = l.id", time.Second, nil)
	m.Record("SELECT * FROM leads WHERE status = 'new'", 2*time.Second, nil)
	m.Record("UPDATE leads SET status = 'won'", time.Second, nil)
	m.Record("SELECT * FROM call_logs", time.Second, nil)

	a := m.Analyze()

	assert.Equal(t, 4, a.SampleCount)
	assert.Equal(t, 1, a.JoinHeavy)
	assert.Equal(t, 3, a.ByOperation[TypeSelect])
	assert.Equal(t, 1, a.ByOperation[TypeUpdate])
	assert.EqualValues(t, 2000, a.SlowestSampleMs)
	require.NotEmpty(t, a.FrequentTables)
	assert.Equal(t, "leads", a.FrequentTables[0].Table)
	assert.Equal(t, 3, a.FrequentTables[0].Count)
}

type fakePinger struct {
	err   error
	delay time.Duration
}

func (p fakePinger) Ping(ctx context.Context) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.err
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		m := New(time.Second)
		m.Record("SELECT 1", 10*time.Millisecond, nil)

		h := m.Health(context.Background(), fakePinger{})
		assert.Equal(t, StatusHealthy, h.Status)
	})

	t.Run("unhealthy when connectivity fails", func(t *testing.T) {
		m := New(time.Second)

		h := m.Health(context.Background(), fakePinger{err: errors.New("connection refused")})
		assert.Equal(t, StatusUnhealthy, h.Status)
		assert.Contains(t, h.PingError, "connection refused")
	})

	t.Run("degraded under slow-query pressure", func(t *testing.T) {
		m := New(time.Millisecond)
		for i := 0; i < highSeveritySlowCount; i++ {
			m.Record("SELECT * FROM leads", time.Second, nil)
		}

		h := m.Health(context.Background(), fakePinger{})
		assert.Equal(t, StatusDegraded, h.Status)
	})
}

func TestReset(t *testing.T) {
	m := New(time.Millisecond)
	m.Record("SELECT * FROM leads", time.Second, nil)

	m.Reset()

	s := m.Stats()
	assert.Zero(t, s.TotalQueries)
	assert.Zero(t, s.SlowQueries)
	assert.Empty(t, m.Samples())
}
