package advisor

import (
	"context"
	"time"
)

// benchmarkBattery is the fixed set of representative queries run
// before and after a batch apply.
var benchmarkBattery = []struct {
	Name string
	SQL  string
}{
	{"lead_by_email", "SELECT * FROM leads WHERE email = 'bench@example.com'"},
	{"leads_by_status", "SELECT * FROM leads WHERE status = 'qualified' ORDER BY created_at DESC LIMIT 50"},
	{"contact_by_email", "SELECT * FROM contacts WHERE email = 'bench@example.com'"},
	{"lead_call_history", "SELECT * FROM call_logs WHERE lead_id = 1 ORDER BY initiated_at DESC LIMIT 20"},
	{"recent_calls", "SELECT * FROM call_logs WHERE initiated_at > NOW() - INTERVAL '1 day'"},
	{"lead_contact_join", "SELECT l.id, c.email FROM leads l JOIN contacts c ON c.lead_id = l.id LIMIT 100"},
}

// benchmarkRuns is how many times each battery query executes; the
// reported duration is the average.
const benchmarkRuns = 3

// settleDelay gives freshly created indexes time to become available
// to the planner before the after-pass runs.
const settleDelay = 2 * time.Second

// QueryTiming is one battery entry's measurement.
type QueryTiming struct {
	Name       string        `json:"name"`
	AvgMs      float64       `json:"avg_ms"`
	Total      time.Duration `json:"-"`
	Runs       int           `json:"runs"`
	FailedRuns int           `json:"failed_runs,omitempty"`
}

// BenchmarkResult is a full battery pass.
type BenchmarkResult struct {
	Timings []QueryTiming `json:"timings"`
	TotalMs float64       `json:"total_ms"`
}

// Benchmark runs the battery once and returns per-query averages.
// Individual run failures are counted, not fatal.
func (a *Advisor) Benchmark(ctx context.Context) (BenchmarkResult, error) {
	var result BenchmarkResult
	for _, q := range benchmarkBattery {
		timing := QueryTiming{Name: q.Name, Runs: benchmarkRuns}
		var total time.Duration
		for i := 0; i < benchmarkRuns; i++ {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			start := time.Now()
			if err := a.exec.Exec(ctx, q.SQL); err != nil {
				timing.FailedRuns++
				continue
			}
			total += time.Since(start)
		}
		if ok := timing.Runs - timing.FailedRuns; ok > 0 {
			timing.AvgMs = float64(total.Milliseconds()) / float64(ok)
		}
		timing.Total = total
		result.Timings = append(result.Timings, timing)
		result.TotalMs += timing.AvgMs
	}
	return result, nil
}

// Comparison is the empirical before/after view of a batch apply.
type Comparison struct {
	Before         BenchmarkResult `json:"before"`
	After          BenchmarkResult `json:"after"`
	Results        []Result        `json:"results"`
	ImprovementPct float64         `json:"improvement_pct"`
}

// BenchmarkImplementation runs the battery, applies the batch, waits
// out the settle delay, and runs the battery again. Long-running and
// sequential; the caller layers cancellation on the context.
func (a *Advisor) BenchmarkImplementation(ctx context.Context, recs []Recommendation, opts Options) (*Comparison, error) {
	before, err := a.Benchmark(ctx)
	if err != nil {
		return nil, err
	}

	results := a.Implement(ctx, recs, opts)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(settleDelay):
	}

	after, err := a.Benchmark(ctx)
	if err != nil {
		return nil, err
	}

	cmp := &Comparison{Before: before, After: after, Results: results}
	if before.TotalMs > 0 {
		cmp.ImprovementPct = (before.TotalMs - after.TotalMs) / before.TotalMs * 100
	}
	return cmp, nil
}
