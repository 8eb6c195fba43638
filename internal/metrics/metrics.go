package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream metrics
	TickerFramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "okx_ticker_frames_received_total",
			Help: "Total ticker frames received from the stream",
		},
	)

	MalformedFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "okx_malformed_frames_dropped_total",
			Help: "Total inbound frames dropped because they carried no usable ticker",
		},
	)

	ActiveSubscription = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "okx_active_subscription",
			Help: "1 when a streaming subscription is active, 0 when idle",
		},
	)

	CloseRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "okx_close_retries_total",
			Help: "Total retries of the unsubscribe/close teardown sequence",
		},
	)

	// Instrument directory metrics
	InstrumentFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okx_instrument_fetches_total",
			Help: "Total REST instrument list fetches by market type and outcome",
		},
		[]string{"market", "status"}, // status: success, error
	)

	RepoCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okx_repo_cache_hits_total",
			Help: "Total per-market instrument repository cache hits",
		},
		[]string{"market"},
	)

	RepoCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okx_repo_cache_misses_total",
			Help: "Total per-market instrument repository cache misses",
		},
		[]string{"market"},
	)

	// Publishing metrics
	PublishSuccess = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "okx_publish_success_total",
			Help: "Total successful Redis ticker publishes",
		},
	)

	PublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "okx_publish_failures_total",
			Help: "Total failed Redis ticker publishes",
		},
	)
)
