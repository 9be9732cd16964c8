package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ledgerimport"

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "batch",
		Name:      "submitted_total",
		Help:      "Batches submitted to the ingestion endpoint by outcome.",
	}, []string{"kind", "outcome"})

	batchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "batch",
		Name:      "duration_seconds",
		Help:      "Time spent waiting for one batch submission.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Rows processed by import runs by result.",
	}, []string{"kind", "result"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Finished import runs by outcome.",
	}, []string{"kind", "outcome"})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "import",
		Name:      "active_runs",
		Help:      "Import runs currently submitting batches.",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Import sessions held in memory.",
	})
)
