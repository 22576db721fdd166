package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promOnce sync.Once

	queriesTotal    *prometheus.CounterVec
	queryErrors     prometheus.Counter
	slowTotal       prometheus.Counter
	queryDurationsS prometheus.Histogram
)

// initPromMetrics registers the query telemetry collectors with the
// default registry exactly once, so multiple Monitor instances (tests)
// never double-register.
func initPromMetrics() {
	promOnce.Do(func() {
		queriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "contactops",
				Name:      "queries_total",
				Help:      "Total number of executed queries by type.",
			},
			[]string{"type"},
		)
		queryErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contactops",
			Name:      "query_errors_total",
			Help:      "Total number of failed query executions.",
		})
		slowTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "contactops",
			Name:      "slow_queries_total",
			Help:      "Total number of queries exceeding the slow threshold.",
		})
		queryDurationsS = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "contactops",
			Name:      "query_duration_seconds",
			Help:      "Histogram of query execution durations in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		})
		prometheus.MustRegister(queriesTotal, queryErrors, slowTotal, queryDurationsS)
	})
}

func observeQuery(qt QueryType, d time.Duration, slow, failed bool) {
	initPromMetrics()
	queriesTotal.WithLabelValues(string(qt)).Inc()
	queryDurationsS.Observe(d.Seconds())
	if slow {
		slowTotal.Inc()
	}
	if failed {
		queryErrors.Inc()
	}
}
