package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	AnalysesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citefinder_analyses_started_total",
			Help: "Total number of article analyses started",
		},
	)

	AnalysesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_analyses_completed_total",
			Help: "Total number of article analyses completed",
		},
		[]string{"status"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citefinder_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"status"},
	)

	PhrasesAccepted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citefinder_phrases_accepted",
			Help:    "Number of phrases accepted per analysis",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 10},
		},
	)

	// Per-phrase outcomes: ok, empty, upstream_error
	PhraseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_phrase_outcomes_total",
			Help: "Per-phrase link retrieval outcomes",
		},
		[]string{"outcome"},
	)

	FilterDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_filter_drops_total",
			Help: "Candidate phrases dropped by the relevance filter, by stage",
		},
		[]string{"stage"},
	)

	ParseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_llm_parse_outcomes_total",
			Help: "Outcome of parsing completion output as JSON",
		},
		[]string{"kind"},
	)

	ReasonFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citefinder_reason_fallbacks_total",
			Help: "Citation reasons answered with the fallback text",
		},
	)

	// Upstream metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_upstream_requests_total",
			Help: "Total number of calls to external services",
		},
		[]string{"upstream", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citefinder_upstream_latency_seconds",
			Help:    "External service call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citefinder_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citefinder_http_rate_limited_total",
			Help: "Requests rejected by the inbound rate limiter",
		},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_embedding_requests_total",
			Help: "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citefinder_embedding_latency_seconds",
			Help:    "Embedding generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Embedding cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citefinder_embedding_cache_hits_total",
			Help: "Total number of embedding cache hits",
		},
		[]string{"layer"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "citefinder_embedding_cache_misses_total",
			Help: "Total number of embedding cache misses",
		},
	)
)

// RecordAnalysisMetrics records metrics for a finished analysis
func RecordAnalysisMetrics(status string, durationSeconds float64, phrases int) {
	AnalysesCompleted.WithLabelValues(status).Inc()
	AnalysisDuration.WithLabelValues(status).Observe(durationSeconds)
	if status == "success" {
		PhrasesAccepted.Observe(float64(phrases))
	}
}

// RecordUpstreamMetrics records one call to an external service
func RecordUpstreamMetrics(upstream, status string, durationSeconds float64) {
	UpstreamRequests.WithLabelValues(upstream, status).Inc()
	if durationSeconds > 0 {
		UpstreamLatency.WithLabelValues(upstream).Observe(durationSeconds)
	}
}

// RecordHTTPMetrics records metrics for an API request
func RecordHTTPMetrics(route, code string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordEmbeddingMetrics records embedding metrics
func RecordEmbeddingMetrics(model, status string, durationSeconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// StatusLabel maps an error to the status label used by the upstream metrics
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
