// Package metrics defines the prometheus metrics used to add accounting to
// various parts of the pipeline.
//
// When defining new operations or metrics, these are helpful values to track:
//  - things coming into or go out of the system: bytes, messages, connections.
//  - the success or error status of any of the above.
//  - the distribution of per-iteration results.
package metrics

import (
	"log"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BytesTotal counts bytes moved by workers, split by direction
	// (rx/tx) and role (client/server).
	//
	// Provides metrics:
	//   nperf_bytes_total
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nperf_bytes_total",
			Help: "Total bytes moved by workers.",
		}, []string{"direction", "role"})

	// MessagesTotal counts completed application messages, labeled the same
	// way as BytesTotal.
	//
	// Provides metrics:
	//   nperf_messages_total
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nperf_messages_total",
			Help: "Total completed messages moved by workers.",
		}, []string{"direction", "role"})

	// WorkerErrorCount measures the number of worker-terminal errors
	// encountered, by a coarse error class (e.g. "connect", "io", "timeout").
	//
	// Provides metrics:
	//   nperf_worker_error_total
	// Example usage:
	//   metrics.WorkerErrorCount.With(prometheus.Labels{"role": "client", "class": "io"}).Inc()
	WorkerErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nperf_worker_error_total",
			Help: "The total number of worker errors encountered, by class.",
		}, []string{"role", "class"})

	// IterationCount counts iterations run, by outcome ("ok" or "failed").
	//
	// Provides metrics:
	//   nperf_iteration_total
	IterationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nperf_iteration_total",
			Help: "Total iterations run, by outcome.",
		}, []string{"outcome"})

	// IterationResultHistogram tracks the per-iteration aggregate result
	// (bytes/s in stream mode, transactions/s in RR mode).
	IterationResultHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "nperf_iteration_result_histogram",
			Help: "Per-iteration aggregate result distribution.",
			Buckets: []float64{
				1, 10, 100, 1000,
				10000, 12600, 15800, 20000, 25100, 31600, 39800, 50100, 63100, 79400,
				100000, 126000, 158000, 200000, 251000, 316000, 398000, 501000, 631000, 794000,
				1000000, 1260000, 1580000, 2000000, 2510000, 3160000, 3980000, 5010000, 6310000, 7940000,
				10000000, math.Inf(+1),
			},
		})

	// ConfidenceHalfWidthRatio tracks the confidence interval half-width
	// as a fraction of the mean, the value the iteration controller compares
	// against its stop target each time it runs the estimate.
	ConfidenceHalfWidthRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nperf_confidence_half_width_ratio_histogram",
			Help:    "Confidence interval half-width as a fraction of the mean.",
			Buckets: prometheus.LinearBuckets(0, 0.01, 20),
		})

	// SessionsTotal counts server-side control sessions handled, by
	// outcome ("ok" or "failed").
	//
	// Provides metrics:
	//   nperf_server_session_total
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nperf_server_session_total",
			Help: "Total server control sessions handled, by outcome.",
		}, []string{"outcome"})

	// ActiveWorkerGauge tracks the number of worker goroutines currently
	// running a test, by role.
	ActiveWorkerGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nperf_active_workers",
			Help: "Number of worker goroutines currently running a test.",
		}, []string{"role"})
)

// init() prints a log message to let the user know that the package has been
// loaded and the metrics registered. The metrics are auto-registered, which
// means they are registered as soon as this package is loaded, and the exact
// time this occurs (and whether this occurs at all in a given context) can be
// opaque.
func init() {
	log.Println("Prometheus metrics in nperf.metrics are registered.")
}
