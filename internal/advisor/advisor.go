// Package advisor compares a static index recommendation catalog
// against the live index catalog, estimates impact, and applies
// index-creation DDL on request. It advises; it never rewrites queries
// or alters schemas without an explicit apply step.
package advisor

import (
	"context"
	"fmt"
	"log"
	"strings"

	dbpkg "contactops/internal/db"
)

// Priority orders recommendations for operators.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) weight() float64 {
	switch p {
	case PriorityHigh:
		return 3.0
	case PriorityMedium:
		return 2.0
	default:
		return 1.0
	}
}

// Kind is the index shape.
type Kind string

const (
	KindSingle    Kind = "single"
	KindComposite Kind = "composite"
	KindUnique    Kind = "unique"
)

// Impact is a closed-form heuristic estimate for operator guidance.
// It is NOT a query-planner cost model; treat the numbers as relative
// guidance only.
type Impact struct {
	// PerformanceGain = priorityWeight * (1 + min(rowCount/10000, 2)).
	PerformanceGain float64 `json:"performance_gain"`

	// StorageCostBytes approximates the index footprint from row count
	// and column count.
	StorageCostBytes int64 `json:"storage_cost_bytes"`

	// MaintenanceOverhead is a narrative write-amplification estimate.
	MaintenanceOverhead string `json:"maintenance_overhead"`
}

// Recommendation is one advised index.
type Recommendation struct {
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
	Kind      Kind     `json:"kind"`
	Priority  Priority `json:"priority"`
	Rationale string   `json:"rationale"`
	DDL       string   `json:"ddl"`
	Impact    Impact   `json:"impact"`
}

// Introspector is the catalog-introspection interface the advisor
// consumes. *db.Catalog satisfies it.
type Introspector interface {
	Indexes(ctx context.Context, table string) ([]dbpkg.IndexInfo, error)
	Statistics(ctx context.Context, table string) (dbpkg.TableStatistics, error)
}

// Executor runs DDL and benchmark statements. *db.Catalog satisfies it.
type Executor interface {
	Exec(ctx context.Context, sql string) error
}

// Advisor holds the hand-curated recommendation catalog. The knowledge
// base is static, not learned.
type Advisor struct {
	intro   Introspector
	exec    Executor
	catalog []Recommendation
}

func New(intro Introspector, exec Executor) *Advisor {
	return &Advisor{
		intro:   intro,
		exec:    exec,
		catalog: recommendationCatalog(),
	}
}

// recommendationCatalog is the per-table knowledge base for the CRM
// schema.
func recommendationCatalog() []Recommendation {
	return []Recommendation{
		{Table: "leads", Columns: []string{"email"}, Kind: KindUnique, Priority: PriorityHigh,
			Rationale: "lead lookup and duplicate detection by email address"},
		{Table: "leads", Columns: []string{"status", "created_at"}, Kind: KindComposite, Priority: PriorityMedium,
			Rationale: "pipeline views filter by status and sort by recency"},
		{Table: "leads", Columns: []string{"assigned_to"}, Kind: KindSingle, Priority: PriorityLow,
			Rationale: "owner-scoped lead lists"},
		{Table: "contacts", Columns: []string{"email"}, Kind: KindSingle, Priority: PriorityHigh,
			Rationale: "contact lookup by email address"},
		{Table: "contacts", Columns: []string{"lead_id"}, Kind: KindSingle, Priority: PriorityMedium,
			Rationale: "joining contacts to their parent lead"},
		{Table: "call_logs", Columns: []string{"lead_id", "initiated_at"}, Kind: KindComposite, Priority: PriorityHigh,
			Rationale: "per-lead call history ordered by call time"},
		{Table: "call_logs", Columns: []string{"initiated_at"}, Kind: KindSingle, Priority: PriorityMedium,
			Rationale: "rolling time-window scans over recent calls"},
	}
}

// Report is the result of one analysis pass.
type Report struct {
	Existing        map[string][]dbpkg.IndexInfo `json:"existing"`
	Recommendations []Recommendation             `json:"recommendations"`
}

// Analyze introspects existing indexes per table and emits each catalog
// entry not already covered by an exact prefix-and-length column match.
// Existing indexes are never flagged for removal.
func (a *Advisor) Analyze(ctx context.Context) (*Report, error) {
	report := &Report{Existing: make(map[string][]dbpkg.IndexInfo)}

	for _, table := range dbpkg.Tables() {
		indexes, err := a.intro.Indexes(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", table, err)
		}
		report.Existing[table] = indexes
	}

	for _, rec := range a.catalog {
		if covered(report.Existing[rec.Table], rec.Columns) {
			continue
		}
		rec.DDL = BuildDDL(rec)
		rec.Impact = a.estimateImpact(ctx, rec)
		report.Recommendations = append(report.Recommendations, rec)
	}
	return report, nil
}

// covered reports whether any existing index has exactly the
// recommended column list (same columns, same order, same length).
func covered(existing []dbpkg.IndexInfo, cols []string) bool {
	for _, idx := range existing {
		if columnsEqual(idx.Columns, cols) {
			return true
		}
	}
	return false
}

func columnsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// BuildDDL renders the index-creation statement:
//
//	CREATE [UNIQUE] INDEX idx_{table}_{col1}_{col2} ON {table}({col1, col2})
func BuildDDL(rec Recommendation) string {
	unique := ""
	if rec.Kind == KindUnique {
		unique = "UNIQUE "
	}
	name := "idx_" + rec.Table + "_" + strings.Join(rec.Columns, "_")
	return fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, name, rec.Table, strings.Join(rec.Columns, ", "))
}

// estimateImpact computes the closed-form heuristic. Estimation
// failures are swallowed and yield a zero estimate; the advisory path
// never surfaces them to the caller.
func (a *Advisor) estimateImpact(ctx context.Context, rec Recommendation) Impact {
	stats, err := a.intro.Statistics(ctx, rec.Table)
	if err != nil {
		log.Printf("advisor: impact estimate for %s unavailable: %v", rec.Table, err)
		return Impact{}
	}

	factor := float64(stats.RowCount) / 10000
	if factor > 2 {
		factor = 2
	}

	// Rough b-tree footprint: entry overhead plus a small payload per
	// indexed column.
	const bytesPerEntryColumn = 32

	overhead := "low"
	if len(rec.Columns) > 1 {
		overhead = "medium"
	}
	if rec.Kind == KindUnique {
		overhead = "medium"
	}

	return Impact{
		PerformanceGain:     rec.Priority.weight() * (1 + factor),
		StorageCostBytes:    stats.RowCount * int64(len(rec.Columns)) * bytesPerEntryColumn,
		MaintenanceOverhead: overhead,
	}
}
