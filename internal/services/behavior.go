package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// ErrInvalidAction is returned when an event carries an action kind outside
// the closed set. The log only ever holds known kinds.
var ErrInvalidAction = errors.New("invalid action kind")

// BehaviorService owns the append-only interaction log. Rows are immutable
// once written; only Cleanup removes them.
type BehaviorService struct {
	repo      storage.Repository
	config    *config.Config
	logger    *logrus.Logger
	refresher EmbeddingRefresher
	publisher EventPublisher
	metrics   *Metrics
}

func NewBehaviorService(repo storage.Repository, cfg *config.Config, logger *logrus.Logger, refresher EmbeddingRefresher, publisher EventPublisher, metrics *Metrics) *BehaviorService {
	return &BehaviorService{
		repo:      repo,
		config:    cfg,
		logger:    logger,
		refresher: refresher,
		publisher: publisher,
		metrics:   metrics,
	}
}

// Record validates and persists one interaction event, then dispatches an
// unawaited genre embedding refresh for the user. Refresh and publish
// failures never propagate to the caller.
func (s *BehaviorService) Record(ctx context.Context, req *models.BehaviorEventRequest) (*models.BehaviorEvent, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	event := &models.BehaviorEvent{
		ID:                   uuid.New(),
		UserID:               req.UserID,
		ContentID:            req.ContentID,
		Action:               req.Action,
		SessionDuration:      req.SessionDuration,
		Rating:               req.Rating,
		CompletionPercentage: req.CompletionPercentage,
		SkipReason:           req.SkipReason,
		Context:              req.Context,
		Timestamp:            time.Now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, event); err != nil {
		return nil, err
	}

	if s.refresher != nil {
		s.refresher.Refresh(event.UserID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEvent(ctx, event); err != nil {
			s.logger.WithError(err).WithField("event_id", event.ID).Warn("Failed to publish behavior event")
		}
	}

	if s.metrics != nil {
		s.metrics.EventsRecorded.WithLabelValues(string(event.Action)).Inc()
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    event.UserID,
		"content_id": event.ContentID,
		"action":     event.Action,
	}).Debug("Recorded behavior event")

	return event, nil
}

// GetUserBehaviorAnalytics derives aggregate viewing statistics from the
// user's most recent events.
func (s *BehaviorService) GetUserBehaviorAnalytics(ctx context.Context, userID uuid.UUID, limit int) (*models.UserBehaviorAnalytics, error) {
	if limit <= 0 {
		limit = 100
	}

	events, err := s.repo.EventsByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	analytics := &models.UserBehaviorAnalytics{
		ActionCounts: make(map[models.ActionKind]int),
	}

	var (
		sessionSum   int
		sessionCount int
		ratingSum    float64
		ratingCount  int
		timeSlots    = make(map[string]int)
	)

	for i := range events {
		event := &events[i]
		analytics.ActionCounts[event.Action]++

		if event.SessionDuration != nil {
			sessionSum += *event.SessionDuration
			sessionCount++
		}
		if event.Action == models.ActionRated && event.Rating != nil {
			ratingSum += *event.Rating
			ratingCount++
		}
		if event.Context != nil && event.Context.TimeOfDay != "" {
			timeSlots[event.Context.TimeOfDay]++
		}
		if analytics.LastActive == nil || event.Timestamp.After(*analytics.LastActive) {
			ts := event.Timestamp
			analytics.LastActive = &ts
		}
	}

	analytics.TotalViews = analytics.ActionCounts[models.ActionViewed]
	if sessionCount > 0 {
		analytics.AvgSessionDuration = float64(sessionSum) / float64(sessionCount)
	}
	if ratingCount > 0 {
		analytics.AvgRating = ratingSum / float64(ratingCount)
	}
	if analytics.TotalViews > 0 {
		analytics.CompletionRate = float64(analytics.ActionCounts[models.ActionCompleted]) / float64(analytics.TotalViews)
	}
	analytics.PreferredTimeSlots = topKeys(timeSlots, 3)

	frequencies, _, err := s.repo.UserGenreFrequencies(ctx, userID)
	if err != nil {
		// Genre join failure degrades the favorite list, not the response.
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to derive favorite genres")
	} else {
		analytics.FavoriteGenres = topKeys(frequencies, 5)
	}

	return analytics, nil
}

// Cleanup deletes events older than the configured retention window. An
// external scheduler invokes this; the store never self-schedules it.
func (s *BehaviorService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.config.Retention.Days)
	deleted, err := s.repo.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff,
	}).Info("Retention cleanup complete")
	return deleted, nil
}

// topKeys returns the n highest-count keys, ties broken alphabetically for
// deterministic output.
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
