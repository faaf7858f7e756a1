// Package metrics holds the Prometheus collectors of the compiler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Compilations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamc_compilations_total",
		Help: "Total number of compilations, labelled by result.",
	}, []string{"result"})

	PassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamc_pass_duration_seconds",
		Help:    "Duration of a single compiler pass.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"pass"})

	ParallelRegions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamc_parallel_regions_total",
		Help: "Total number of parallel regions expanded.",
	})

	Replicas = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamc_parallel_replicas_total",
		Help: "Total number of operator replicas created by parallel expansion.",
	})

	ConsistentRegions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamc_consistent_regions_total",
		Help: "Total number of effective consistent regions found.",
	})

	TopologyNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamc_topology_nodes",
		Help:    "Number of physical nodes per compiled topology.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)
