package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	CatalogLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "dataset_loads_total",
		Help:      "Total dataset load attempts by result status.",
	}, []string{"status"})

	CatalogLoadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "dataset_load_duration_seconds",
		Help:      "Dataset fetch, repair, parse and normalize duration in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	CatalogEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "catalog",
		Name:      "entries",
		Help:      "Number of normalized entries in the loaded catalog.",
	})

	SearchRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "search_requests_total",
		Help:      "Total ranked search invocations.",
	})

	SearchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "search_duration_seconds",
		Help:      "In-memory search duration in seconds.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})

	GenrePartitionBuildsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "genre_partition_builds_total",
		Help:      "Times the per-genre partitions were (re)built.",
	})

	RecommendRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "recommend_requests_total",
		Help:      "Total requests to the recommendation service by result status.",
	}, []string{"status"})

	RecommendRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "recommend_request_duration_seconds",
		Help:      "Recommendation service request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20},
	})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_hits_total",
		Help:      "External response cache hits by cache name.",
	}, []string{"cache"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "cache_misses_total",
		Help:      "External response cache misses by cache name.",
	}, []string{"cache"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogLoadsTotal,
		CatalogLoadDuration,
		CatalogEntries,
		SearchRequestsTotal,
		SearchDuration,
		GenrePartitionBuildsTotal,
		RecommendRequestsTotal,
		RecommendRequestDuration,
		CacheHitsTotal,
		CacheMissesTotal,
	)
}
