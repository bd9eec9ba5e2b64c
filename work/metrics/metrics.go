package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Requests counts inbound proxy requests by HTTP method and response status.
var Requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsproxy_requests_total",
	Help: "Total proxy requests handled",
}, []string{"method", "status"})

// UpstreamFetches counts outbound fetches by result
// ("ok", "http_error", "transport_error").
var UpstreamFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsproxy_upstream_fetches_total",
	Help: "Total upstream fetches",
}, []string{"result"})

// UpstreamFetchDuration observes the wall time of each upstream fetch,
// retries included.
var UpstreamFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "hlsproxy_upstream_fetch_duration_seconds",
	Help:    "Upstream fetch duration in seconds",
	Buckets: prometheus.DefBuckets,
})

// CacheOperations counts cache lookups and writes. The "namespace" label is
// raw or processed; "result" is hit, miss, write or error.
var CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsproxy_cache_operations_total",
	Help: "Cache operations by namespace and result",
}, []string{"namespace", "result"})

// PlaylistsRewritten counts playlists produced by the pipeline, labeled by
// how they were produced ("media", "master").
var PlaylistsRewritten = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hlsproxy_playlists_rewritten_total",
	Help: "Playlists rewritten",
}, []string{"kind"})
