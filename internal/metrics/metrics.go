package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterview_polls_total",
			Help: "Total number of polling ticks by outcome",
		},
		[]string{"outcome"}, // applied, failed, superseded
	)

	SnapshotFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterview_snapshot_fetch_errors_total",
			Help: "Total number of failed snapshot fetches",
		},
		[]string{"snapshot"}, // inventory, registry
	)

	// Gauges
	ClusterNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_nodes",
			Help: "Nodes in the last applied view",
		},
	)

	ClusterWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_workers",
			Help: "Live workers in the last applied view",
		},
	)

	ClusterGPUs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_gpus",
			Help: "GPUs in the last applied view",
		},
	)

	// Set to NaN when no node reports a GPU
	ClusterGPUUtilization = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_gpu_utilization_percent",
			Help: "Device-weighted GPU utilization across the cluster",
		},
	)

	ClusterLogLines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_log_lines",
			Help: "Log lines attributed to live workers in the last applied view",
		},
	)

	ClusterErrors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_errors",
			Help: "Errors attributed to live workers in the last applied view",
		},
	)

	ClusterActors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterview_cluster_actors",
			Help: "Actors in the registry's actor tree in the last applied view",
		},
	)

	// Histogram for one polling tick, fetch through assembly
	// Buckets: 5ms to ~10s
	PollDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterview_poll_duration_seconds",
			Help:    "Duration of a polling tick in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
)
