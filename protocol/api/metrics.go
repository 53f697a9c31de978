package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livephoto"

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "probes_total",
			Help:      "The total number of probed files by detected format and outcome.",
		},
		[]string{"format", "result"},
	)
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_hits_total",
			Help:      "The total number of probe reports served from cache.",
		},
	)
	requestDurations = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "A histogram of api request latencies.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	)
)
