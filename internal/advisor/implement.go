package advisor

import (
	"context"
	"log"
	"sort"
	"time"
)

// Options controls a batch apply.
type Options struct {
	// DryRun renders DDL without executing anything.
	DryRun bool

	// MaxIndexes caps how many recommendations are applied; 0 = all.
	MaxIndexes int

	// PriorityFilter, when set, applies only recommendations of that
	// priority.
	PriorityFilter Priority
}

// Result captures one recommendation's outcome. Partial failure of one
// item never aborts the remaining batch.
type Result struct {
	Recommendation Recommendation `json:"recommendation"`
	Applied        bool           `json:"applied"`
	DryRun         bool           `json:"dry_run,omitempty"`
	Error          string         `json:"error,omitempty"`
	Duration       time.Duration  `json:"duration_ms"`
}

// Implement applies index-creation DDL one recommendation at a time,
// in priority order, capturing per-item success and failure
// independently.
func (a *Advisor) Implement(ctx context.Context, recs []Recommendation, opts Options) []Result {
	ordered := make([]Recommendation, len(recs))
	copy(ordered, recs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority.weight() > ordered[j].Priority.weight()
	})

	results := make([]Result, 0, len(ordered))
	for _, rec := range ordered {
		if opts.PriorityFilter != "" && rec.Priority != opts.PriorityFilter {
			continue
		}
		if opts.MaxIndexes > 0 && len(results) >= opts.MaxIndexes {
			break
		}

		if rec.DDL == "" {
			rec.DDL = BuildDDL(rec)
		}

		res := Result{Recommendation: rec}
		if opts.DryRun {
			res.DryRun = true
			results = append(results, res)
			continue
		}

		start := time.Now()
		if err := a.exec.Exec(ctx, rec.DDL); err != nil {
			res.Error = err.Error()
			log.Printf("advisor: create index on %s(%v) failed: %v", rec.Table, rec.Columns, err)
		} else {
			res.Applied = true
			log.Printf("advisor: created index on %s(%v)", rec.Table, rec.Columns)
		}
		res.Duration = time.Since(start)
		results = append(results, res)
	}
	return results
}

// Phase is one priority band of the implementation plan.
type Phase struct {
	Name            string           `json:"name"`
	Priority        Priority         `json:"priority"`
	Recommendations []Recommendation `json:"recommendations"`
}

// ImplementationPlan groups recommendations into priority-ordered
// phases for presentation, with a static risk narrative. DDL removal
// stays manual; there is no rollback automation.
type ImplementationPlan struct {
	Phases []Phase `json:"phases"`
	Risk   string  `json:"risk"`
}

const riskNarrative = "Index creation locks writes on the target table for the build duration. " +
	"Apply during a low-traffic window, one phase at a time, and verify query plans before the next phase. " +
	"Rollback is manual: DROP INDEX the created names."

// Plan organizes recommendations into high/medium/low phases.
func Plan(recs []Recommendation) ImplementationPlan {
	plan := ImplementationPlan{Risk: riskNarrative}
	for i, p := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		phase := Phase{
			Name:     "phase-" + string(rune('1'+i)),
			Priority: p,
		}
		for _, rec := range recs {
			if rec.Priority == p {
				phase.Recommendations = append(phase.Recommendations, rec)
			}
		}
		if len(phase.Recommendations) > 0 {
			plan.Phases = append(plan.Phases, phase)
		}
	}
	return plan
}
