// Package metrics provides Prometheus instrumentation for the sync layer:
// counters for cache adoption, fetch outcomes, realtime traffic, and
// reconnect behavior. Hosts that want a scrape endpoint mount Handler().
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits counts persisted snapshots adopted at load time, labeled by
	// namespace: "listings" or "chat_rooms".
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estatesync_cache_hits_total",
		Help: "Persisted snapshots adopted within their TTL",
	}, []string{"namespace"})

	// CacheMisses counts load attempts that found no snapshot or an expired one.
	CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estatesync_cache_misses_total",
		Help: "Snapshot loads that found nothing valid",
	}, []string{"namespace"})

	// FetchErrors counts failed API fetches, labeled by resource.
	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estatesync_fetch_errors_total",
		Help: "Failed fetches against the marketplace API",
	}, []string{"resource"})

	// RealtimeMessages counts inbound realtime frames by type tag, including
	// the "unknown" tag for frames that were dropped.
	RealtimeMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "estatesync_realtime_messages_total",
		Help: "Inbound realtime messages by type",
	}, []string{"type"})

	// ReconnectAttempts counts scheduled reconnects of the realtime channel.
	ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "estatesync_reconnect_attempts_total",
		Help: "Realtime channel reconnect attempts",
	})

	// ChannelOpen tracks whether the realtime channel currently has a live
	// connection (1) or not (0).
	ChannelOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "estatesync_channel_open",
		Help: "Whether the realtime channel is connected",
	})
)

func init() {
	prometheus.MustRegister(
		CacheHits,
		CacheMisses,
		FetchErrors,
		RealtimeMessages,
		ReconnectAttempts,
		ChannelOpen,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
