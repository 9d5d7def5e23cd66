package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/blockscan/internal/core/domain"
)

var (
	// Jobs tracks the number of jobs per status
	Jobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blockscan_jobs",
			Help: "Number of scan jobs by status",
		},
		[]string{"status"},
	)

	// BlocksScanned tracks simulated blocks advanced per network
	BlocksScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockscan_blocks_scanned_total",
			Help: "Total number of blocks advanced by the ticker",
		},
		[]string{"network"},
	)

	// Findings tracks findings raised per severity
	Findings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockscan_findings_total",
			Help: "Total number of findings raised",
		},
		[]string{"severity"},
	)

	// Ticks tracks ticker invocations
	Ticks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blockscan_ticks_total",
			Help: "Total number of ticker invocations",
		},
	)

	// TickDuration tracks how long one tick takes
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "blockscan_tick_duration_seconds",
			Help:    "Time spent advancing all running jobs in one tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Transitions tracks job status changes by target status
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockscan_transitions_total",
			Help: "Total number of job status transitions",
		},
		[]string{"to"},
	)

	// PersistErrors tracks failed snapshot writes
	PersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockscan_persist_errors_total",
			Help: "Total number of failed snapshot operations",
		},
		[]string{"op"},
	)
)

// RecordJobCounts sets the Jobs gauge from a status count map.
func RecordJobCounts(counts map[domain.JobStatus]int) {
	for status, n := range counts {
		Jobs.WithLabelValues(string(status)).Set(float64(n))
	}
}

// RecordFindingDelta adds the difference between two finding snapshots.
func RecordFindingDelta(before, after domain.FindingCounts) {
	if after.High > before.High {
		Findings.WithLabelValues(string(domain.SeverityHigh)).Add(float64(after.High - before.High))
	}
	if after.Medium > before.Medium {
		Findings.WithLabelValues(string(domain.SeverityMedium)).Add(float64(after.Medium - before.Medium))
	}
	if after.Low > before.Low {
		Findings.WithLabelValues(string(domain.SeverityLow)).Add(float64(after.Low - before.Low))
	}
}
