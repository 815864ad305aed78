package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	intentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chesschain_intents_processed_total",
		Help: "Total number of intents completed successfully",
	})

	intentsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chesschain_intents_failed_total",
		Help: "Total number of intents that exhausted their retries",
	})

	intentsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chesschain_intents_retried_total",
		Help: "Total number of intent attempts returned to pending",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chesschain_queue_depth",
		Help: "Current number of pending queue rows",
	})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chesschain_active_workers",
		Help: "Per-actor workers currently draining",
	})

	submitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chesschain_submit_duration_seconds",
		Help:    "Duration of chain submissions including effects wait",
		Buckets: prometheus.DefBuckets,
	})
)
