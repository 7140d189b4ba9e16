package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts runs by result (completed, aborted, rejected)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warren_orchestrator_runs_total",
		Help: "Total search runs by result",
	}, []string{"result"})

	// runDuration tracks wall time per run
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warren_orchestrator_run_duration_seconds",
		Help:    "Search run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})

	// candidatesTotal counts generated genomes by outcome (ok, failed)
	candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warren_orchestrator_candidates_total",
		Help: "Total candidate genomes generated by outcome",
	}, []string{"outcome"})

	// insertErrorsTotal counts archive insert failures
	insertErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warren_orchestrator_insert_errors_total",
		Help: "Total archive insert errors",
	})
)
