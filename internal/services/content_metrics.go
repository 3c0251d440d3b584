package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// ContentMetricsService stores descriptive content metadata and recomputes
// aggregate statistics from the raw behavior log on every query. Nothing is
// incrementally maintained; freshness is traded for query cost.
type ContentMetricsService struct {
	repo   storage.Repository
	logger *logrus.Logger
}

func NewContentMetricsService(repo storage.Repository, logger *logrus.Logger) *ContentMetricsService {
	return &ContentMetricsService{repo: repo, logger: logger}
}

// Upsert is an idempotent insert-or-replace of descriptive metadata. The
// content's genre embedding is refreshed alongside so the model source sees
// new catalog entries.
func (s *ContentMetricsService) Upsert(ctx context.Context, req *models.ContentUpsertRequest) (*models.ContentMetric, error) {
	metric := &models.ContentMetric{
		ContentID: req.ContentID,
		MediaType: req.MediaType,
		Title:     req.Title,
		Genres:    req.Genres,
		UpdatedAt: time.Now().UTC(),
	}

	if err := s.repo.UpsertContent(ctx, metric); err != nil {
		return nil, err
	}

	if err := s.repo.UpsertContentEmbedding(ctx, metric.ContentID, EmbedGenres(metric.Genres)); err != nil {
		s.logger.WithError(err).WithField("content_id", metric.ContentID).Warn("Failed to refresh content embedding")
	}

	s.logger.WithFields(logrus.Fields{
		"content_id": metric.ContentID,
		"media_type": metric.MediaType,
	}).Debug("Upserted content metadata")

	return metric, nil
}

// GetMetrics returns stored metadata together with statistics derived from
// the behavior log at call time.
func (s *ContentMetricsService) GetMetrics(ctx context.Context, contentID int64) (*models.ContentMetrics, error) {
	metric, err := s.repo.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.ContentStats(ctx, contentID)
	if err != nil {
		return nil, err
	}

	metrics := &models.ContentMetrics{
		ContentMetric: *metric,
		AverageRating: stats.AverageRating,
		TotalViews:    stats.Views,
	}
	if stats.Views > 0 {
		metrics.CompletionRate = float64(stats.Completed) / float64(stats.Views)
	}
	if stats.TotalEvents > 0 {
		metrics.SkipRate = float64(stats.Skipped) / float64(stats.TotalEvents)
	}
	return metrics, nil
}

// UpdateScores overwrites the externally-owned trending and popularity
// fields. The scoring job feeds this through the message bus.
func (s *ContentMetricsService) UpdateScores(ctx context.Context, contentID int64, trending, popularity float64) error {
	return s.repo.UpdateContentScores(ctx, contentID, trending, popularity)
}
