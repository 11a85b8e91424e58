package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics track run and feed-level behavior
var (
	// PipelineRunsTotal counts completed pipeline runs by status
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"}, // status: success, partial, failed
	)

	// PipelineRunDuration measures full run duration in seconds
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Time taken for a full pipeline run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// FeedsFetchedTotal counts feed fetches by source and result
	FeedsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feeds_fetched_total",
			Help: "Total number of feed fetch operations",
		},
		[]string{"source", "status"},
	)

	// FeedFetchDuration measures time to fetch and parse one feed
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Time taken to fetch and parse a feed",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// FeedFetchErrors counts errors during feed fetching
	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of feed fetch errors",
		},
		[]string{"source", "error_type"},
	)

	// FeedItemsTotal counts item outcomes across all runs
	FeedItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_total",
			Help: "Total number of feed items by outcome",
		},
		[]string{"outcome"}, // outcome: success, failed, skipped, cached
	)
)

// Digest metrics track AI summarization behavior
var (
	// DigestGenerationsTotal counts digest generations by provider and result
	DigestGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_generations_total",
			Help: "Total number of digest generation attempts",
		},
		[]string{"provider", "status"},
	)

	// DigestGenerationDuration measures time to generate one digest
	DigestGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_generation_duration_seconds",
			Help:    "Time taken to generate a digest for one item",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// DigestLayerFailures counts per-layer generation failures that degraded output
	DigestLayerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_layer_failures_total",
			Help: "Total number of digest layer generation failures",
		},
		[]string{"layer"}, // layer: paragraphs, section, overall, one_line
	)
)

// Cache metrics track the content-addressed cache
var (
	// CacheRequestsTotal counts cache lookups by namespace and result
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of cache lookups",
		},
		[]string{"namespace", "result"}, // result: hit, miss
	)

	// CacheWritesTotal counts cache writes by namespace and result
	CacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_writes_total",
			Help: "Total number of cache writes",
		},
		[]string{"namespace", "status"}, // status: success, failure
	)
)

// Content fetch metrics track article page retrieval
var (
	// ContentFetchAttemptsTotal counts article fetches by outcome
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// ContentFetchDuration measures one article page retrieval
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures extracted article sizes
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "content_fetch_size_bytes",
			Help: "Fetched article content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)
)

// Publish metrics track the published output
var (
	// PublishedEntriesTotal tracks entries currently in the published store
	PublishedEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "published_entries_total",
			Help: "Number of entries currently in the published store",
		},
	)
)

// Database metrics cover the persistence adapter
var (
	// DBQueryDuration measures query latency per operation
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive mirrors the pool's in-use connection count
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle mirrors the pool's idle connection count
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
