package handlers

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"contactops/internal/advisor"
	"contactops/internal/backup"
	"contactops/internal/monitor"
	"contactops/internal/orchestrator"
)

// Healthz is the unauthenticated liveness probe.
func Healthz(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		h := o.Health(ctx)
		status := fasthttp.StatusOK
		if h.Status == monitor.StatusUnhealthy {
			status = fasthttp.StatusServiceUnavailable
		}
		WriteJSON(ctx, status, h)
	}
}

// StatsHandler exposes the unified stats surface.
func StatsHandler(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		WriteJSON(ctx, fasthttp.StatusOK, o.Stats())
	}
}

type invalidateRequest struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
	All    bool   `json:"all"`
}

// InvalidateCache clears a single entity (with its cascade targets) or
// every pool when all=true.
func InvalidateCache(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req invalidateRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			WriteError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		if req.All {
			o.Cache.InvalidateAll()
			WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "flushed all pools"})
			return
		}
		if req.Entity == "" || req.ID == 0 {
			WriteError(ctx, fasthttp.StatusBadRequest, "entity and id are required unless all=true")
			return
		}

		o.Cache.InvalidateEntity(req.Entity, req.ID)
		WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"status": "invalidated",
			"entity": req.Entity,
			"id":     req.ID,
		})
	}
}

// ResetMetrics clears the cache counters and the query monitor.
// Explicit operator action only.
func ResetMetrics(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		o.Cache.ResetMetrics()
		o.Monitor.Reset()
		WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "metrics reset"})
	}
}

// SlowQueries returns the retained slow-sample buffer and the pattern
// analysis over it.
func SlowQueries(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"samples":  o.Monitor.Samples(),
			"analysis": o.Monitor.Analyze(),
		})
	}
}

// AdvisorAnalyze runs the index analysis pass.
func AdvisorAnalyze(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		report, err := o.Advisor.Analyze(ctx)
		if err != nil {
			WriteError(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"report": report,
			"plan":   advisor.Plan(report.Recommendations),
		})
	}
}

type implementRequest struct {
	DryRun     bool   `json:"dry_run"`
	MaxIndexes int    `json:"max_indexes"`
	Priority   string `json:"priority"`
	Benchmark  bool   `json:"benchmark"`
}

// AdvisorImplement applies the current recommendations, optionally
// bracketed by the before/after benchmark battery.
func AdvisorImplement(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req implementRequest
		if len(ctx.PostBody()) > 0 {
			if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
				WriteError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
				return
			}
		}

		report, err := o.Advisor.Analyze(ctx)
		if err != nil {
			WriteError(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}

		opts := advisor.Options{
			DryRun:         req.DryRun,
			MaxIndexes:     req.MaxIndexes,
			PriorityFilter: advisor.Priority(req.Priority),
		}

		if req.Benchmark && !req.DryRun {
			cmp, err := o.Advisor.BenchmarkImplementation(ctx, report.Recommendations, opts)
			if err != nil {
				WriteError(ctx, fasthttp.StatusInternalServerError, err.Error())
				return
			}
			WriteJSON(ctx, fasthttp.StatusOK, cmp)
			return
		}

		results := o.Advisor.Implement(ctx, report.Recommendations, opts)
		WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"results": results})
	}
}

type backupRequest struct {
	Type        string   `json:"type"`
	Formats     []string `json:"formats"`
	SkipCleanup bool     `json:"skip_cleanup"`
}

// TriggerBackup runs a backup synchronously and returns its summary.
func TriggerBackup(o *orchestrator.Orchestrator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req backupRequest
		if len(ctx.PostBody()) > 0 {
			if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
				WriteError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
				return
			}
		}

		summary, err := o.RunBackup(ctx, backup.Options{
			Type:        req.Type,
			Formats:     req.Formats,
			SkipCleanup: req.SkipCleanup,
		})
		if err != nil {
			WriteError(ctx, fasthttp.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(ctx, fasthttp.StatusOK, summary)
	}
}

// VerifyBackup recomputes the checksums named by a manifest. Integrity
// failures surface to the operator; nothing is silently repaired.
func VerifyBackup() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.QueryArgs().Peek("manifest"))
		if path == "" {
			WriteError(ctx, fasthttp.StatusBadRequest, "missing manifest query parameter")
			return
		}
		if err := backup.Verify(path); err != nil {
			WriteError(ctx, fasthttp.StatusConflict, err.Error())
			return
		}
		WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "verified"})
	}
}
