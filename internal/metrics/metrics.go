// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CompilationsTotal counts finished jobs by outcome.
	CompilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pycdispatch_compilations_total",
			Help: "Total number of compilation jobs finished, by status (success/failed).",
		},
		[]string{"status"},
	)

	// QueueDepth tracks jobs accepted by the pool but not yet picked up by a
	// worker. There is no backpressure on submission, so this can grow
	// without bound when input outpaces the workers.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pycdispatch_queue_depth",
			Help: "Number of submitted jobs waiting for a free worker.",
		},
	)

	// ActiveWorkers tracks workers currently executing a job.
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pycdispatch_active_workers",
			Help: "Number of pool workers currently running a compilation.",
		},
	)
)
