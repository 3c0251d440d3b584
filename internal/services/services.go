package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/catalog"
	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
)

// Services wires the analytics core together over one storage repository.
type Services struct {
	Behavior       *BehaviorService
	ContentMetrics *ContentMetricsService
	Similarity     *SimilarityEngine
	Embeddings     *GenreEmbeddingUpdater
	Experiments    *ExperimentAnalyzer
	Aggregator     *RecommendationAggregator
	Health         *HealthService
	Metrics        *Metrics
}

func New(repo storage.Repository, cfg *config.Config, logger *logrus.Logger, cache *redis.Client, publisher EventPublisher, catalogClient *catalog.Client, registerer prometheus.Registerer) *Services {
	var metrics *Metrics
	if cfg.Monitoring.Enabled && registerer != nil {
		metrics = NewMetrics(registerer)
	}

	embeddings := NewGenreEmbeddingUpdater(repo, cfg, logger, metrics)
	similarity := NewSimilarityEngine(repo, cfg, logger, metrics)

	sources := []CandidateSource{
		NewCatalogSource(catalogClient, cfg),
		NewModelSource(repo, cfg),
		NewSocialSource(repo, similarity, cfg),
	}

	return &Services{
		Behavior:       NewBehaviorService(repo, cfg, logger, embeddings, publisher, metrics),
		ContentMetrics: NewContentMetricsService(repo, logger),
		Similarity:     similarity,
		Embeddings:     embeddings,
		Experiments:    NewExperimentAnalyzer(repo, logger),
		Aggregator:     NewRecommendationAggregator(sources, cache, cfg, logger, metrics),
		Health:         NewHealthService(repo, logger),
		Metrics:        metrics,
	}
}

// Stop drains background workers. The storage repository is closed by the
// owner that opened it.
func (s *Services) Stop() {
	s.Embeddings.Stop()
}
