package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/reelist/engine/pkg/models"
)

// BehaviorServiceInterface defines the contract for the interaction log.
type BehaviorServiceInterface interface {
	Record(ctx context.Context, req *models.BehaviorEventRequest) (*models.BehaviorEvent, error)
	GetUserBehaviorAnalytics(ctx context.Context, userID uuid.UUID, limit int) (*models.UserBehaviorAnalytics, error)
	Cleanup(ctx context.Context) (int64, error)
}

// ContentMetricsServiceInterface defines the contract for content metadata
// and on-demand aggregate statistics.
type ContentMetricsServiceInterface interface {
	Upsert(ctx context.Context, req *models.ContentUpsertRequest) (*models.ContentMetric, error)
	GetMetrics(ctx context.Context, contentID int64) (*models.ContentMetrics, error)
	UpdateScores(ctx context.Context, contentID int64, trending, popularity float64) error
}

// SimilarityEngineInterface defines the contract for pairwise user
// similarity.
type SimilarityEngineInterface interface {
	FindSimilar(ctx context.Context, userID uuid.UUID, limit int) ([]models.SimilarUser, error)
	Similarity(ctx context.Context, userA, userB uuid.UUID) (*models.UserSimilarity, error)
}

// ExperimentAnalyzerInterface defines the contract for A/B variant analysis.
type ExperimentAnalyzerInterface interface {
	GetExperimentResults(ctx context.Context, experimentName string, from, to time.Time) ([]models.ExperimentVariantResult, error)
}

// AggregatorInterface defines the contract for multi-source recommendation
// aggregation.
type AggregatorInterface interface {
	GetRecommendations(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error)
}

// EmbeddingRefresher accepts fire-and-forget genre embedding refresh
// requests.
type EmbeddingRefresher interface {
	Refresh(userID uuid.UUID)
}

// EventPublisher publishes recorded events to the message bus. A nil
// publisher is a no-op.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.BehaviorEvent) error
}

// CandidateSource is one independent recommendation source. Fetch failures
// are isolated per source and never abort sibling sources.
type CandidateSource struct {
	Name  string
	Fetch func(ctx context.Context, req *models.RecommendationRequest) ([]models.Recommendation, error)
}
