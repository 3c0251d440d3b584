package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/storage"
)

// HealthStatus reports liveness diagnostics for the event log and its
// backend.
type HealthStatus struct {
	Status       string     `json:"status"`
	EventCount   int64      `json:"event_count"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

type HealthService struct {
	repo   storage.Repository
	logger *logrus.Logger
}

func NewHealthService(repo storage.Repository, logger *logrus.Logger) *HealthService {
	return &HealthService{repo: repo, logger: logger}
}

// Check pings the backend and reports record count and last-activity time.
// A failed ping yields an unhealthy status, not an error.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Status: "healthy"}

	if err := s.repo.Ping(ctx); err != nil {
		s.logger.WithError(err).Error("Storage ping failed")
		status.Status = "unhealthy"
		return status
	}

	count, err := s.repo.EventCount(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to count events for health check")
		status.Status = "degraded"
	} else {
		status.EventCount = count
	}

	last, err := s.repo.LastEventTime(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read last event time for health check")
		status.Status = "degraded"
	} else {
		status.LastActivity = last
	}

	return status
}
