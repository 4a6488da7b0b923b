package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_tasks_processed_total",
		Help: "Total number of queue tasks processed",
	})

	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_tasks_failed_total",
		Help: "Total number of queue tasks that failed",
	})

	TasksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_tasks_dropped_total",
		Help: "Total number of undecodable or unknown queue messages dropped",
	})

	MatchesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_matches_ingested_total",
		Help: "Total number of raw matches persisted",
	})

	MatchesNormalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_matches_normalized_total",
		Help: "Total number of raw matches normalized into clean records",
	})

	MatchesUnattributed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_matches_unattributed_total",
		Help: "Total number of matches skipped because no participant matched the tracked player",
	})

	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rift_upstream_rate_limit_hits_total",
		Help: "Total number of 429 responses from the upstream API",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rift_extraction_queue_depth",
		Help: "Current depth of the extraction queue",
	})
)
