package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instruments shared across services. A nil
// *Metrics disables instrumentation, which tests rely on.
type Metrics struct {
	EventsRecorded         *prometheus.CounterVec
	SourceFailures         *prometheus.CounterVec
	SimilarityComputations prometheus.Counter
	SimilarityCacheHits    prometheus.Counter
	EmbeddingRefreshes     prometheus.Counter
	RecommendationDuration prometheus.Histogram
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_behavior_events_total",
			Help: "Behavior events recorded, by action kind.",
		}, []string{"action"}),
		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_recommendation_source_failures_total",
			Help: "Recommendation source fetches that failed, by source.",
		}, []string{"source"}),
		SimilarityComputations: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_similarity_computations_total",
			Help: "Pairwise similarity scores computed on demand.",
		}),
		SimilarityCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_similarity_cache_hits_total",
			Help: "Similarity lookups served from the cached pair table.",
		}),
		EmbeddingRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "engine_genre_embedding_refreshes_total",
			Help: "Background genre embedding recomputations completed.",
		}),
		RecommendationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_recommendation_duration_seconds",
			Help:    "End to end recommendation aggregation latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
