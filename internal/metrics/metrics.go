package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for allocation and validation activity
var (
	KitsAllocatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kits_allocated_total",
			Help: "Total number of kits successfully allocated",
		},
	)

	CellsAllocatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cells_allocated_total",
			Help: "Total number of cells bound to kits",
		},
	)

	AllocationConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_conflicts_total",
			Help: "Total number of allocations rejected for duplicate serial numbers",
		},
	)

	SessionsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_sessions_started_total",
			Help: "Total number of validation sessions started",
		},
	)

	SessionsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "validation_sessions_completed_total",
			Help: "Total number of validation sessions completed",
		},
	)

	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cell_scans_total",
			Help: "Total number of cell scans by validation result",
		},
		[]string{"result"},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cell_scan_duration_seconds",
			Help:    "Duration of cell scan validation",
			Buckets: prometheus.DefBuckets,
		},
	)

	AllocationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kit_allocation_duration_seconds",
			Help:    "Duration of kit allocation transactions",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all Prometheus metrics
func Register() {
	prometheus.MustRegister(KitsAllocatedTotal)
	prometheus.MustRegister(CellsAllocatedTotal)
	prometheus.MustRegister(AllocationConflictsTotal)
	prometheus.MustRegister(SessionsStartedTotal)
	prometheus.MustRegister(SessionsCompletedTotal)
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(AllocationDuration)
}
