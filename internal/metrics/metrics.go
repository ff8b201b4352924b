// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - WebSocket connection state, reconnect attempts, and pong latency
//   - Fetch fallbacks, chain failures, and cache hit/miss rates
//   - Poll cycle counts per job
//   - Published notifier events per stream
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState is the current lifecycle state as an ordinal
	// (0=disconnected, 1=connecting, 2=connected, 3=reconnecting, 4=error).
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncd",
		Subsystem: "ws",
		Name:      "connection_state",
		Help:      "Current WebSocket connection state (ordinal).",
	})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "ws",
		Name:      "reconnect_attempts_total",
		Help:      "Total reconnection attempts scheduled.",
	})

	SocketLatencySeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncd",
		Subsystem: "ws",
		Name:      "latency_seconds",
		Help:      "Latest heartbeat round-trip latency.",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "fetch",
		Name:      "cache_hits_total",
		Help:      "Fetches served from the response cache.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "fetch",
		Name:      "cache_misses_total",
		Help:      "Fetches that went to the network.",
	})

	FetchFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "fetch",
		Name:      "fallbacks_total",
		Help:      "Source failures that fell through to the next source.",
	})

	FetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "fetch",
		Name:      "failures_total",
		Help:      "Fetches whose entire source chain failed.",
	})

	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "poller",
		Name:      "cycles_total",
		Help:      "Poll cycles started, per job.",
	}, []string{"job"})

	PublishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncd",
		Subsystem: "notifier",
		Name:      "published_total",
		Help:      "Events published, per stream.",
	}, []string{"stream"})
)
