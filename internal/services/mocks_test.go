package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// MockRepository is a testify mock over the full storage contract.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertEvent(ctx context.Context, event *models.BehaviorEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockRepository) EventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.BehaviorEvent, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BehaviorEvent), args.Error(1)
}

func (m *MockRepository) EventsWithContext(ctx context.Context, from, to time.Time) ([]models.BehaviorEvent, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BehaviorEvent), args.Error(1)
}

func (m *MockRepository) RecentContentIDs(ctx context.Context, userID uuid.UUID, limit int) ([]int64, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) UsersSharingContent(ctx context.Context, userID uuid.UUID, contentIDs []int64, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID, contentIDs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRepository) InteractionContent(ctx context.Context, userID uuid.UUID, kinds []models.ActionKind) ([]storage.ContentInteraction, error) {
	args := m.Called(ctx, userID, kinds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ContentInteraction), args.Error(1)
}

func (m *MockRepository) UserGenreFrequencies(ctx context.Context, userID uuid.UUID) (map[string]int, int, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(map[string]int), args.Int(1), args.Error(2)
}

func (m *MockRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) EventCount(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) LastEventTime(ctx context.Context) (*time.Time, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockRepository) UpsertContent(ctx context.Context, metric *models.ContentMetric) error {
	args := m.Called(ctx, metric)
	return args.Error(0)
}

func (m *MockRepository) GetContent(ctx context.Context, contentID int64) (*models.ContentMetric, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ContentMetric), args.Error(1)
}

func (m *MockRepository) ContentStats(ctx context.Context, contentID int64) (*storage.ContentStats, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.ContentStats), args.Error(1)
}

func (m *MockRepository) UpdateContentScores(ctx context.Context, contentID int64, trending, popularity float64) error {
	args := m.Called(ctx, contentID, trending, popularity)
	return args.Error(0)
}

func (m *MockRepository) UpsertSimilarity(ctx context.Context, sim *models.UserSimilarity) error {
	args := m.Called(ctx, sim)
	return args.Error(0)
}

func (m *MockRepository) SimilaritiesFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.UserSimilarity, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserSimilarity), args.Error(1)
}

func (m *MockRepository) UpsertGenreEmbedding(ctx context.Context, emb *models.UserGenreEmbedding) error {
	args := m.Called(ctx, emb)
	return args.Error(0)
}

func (m *MockRepository) GetGenreEmbedding(ctx context.Context, userID uuid.UUID) (*models.UserGenreEmbedding, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserGenreEmbedding), args.Error(1)
}

func (m *MockRepository) UpsertContentEmbedding(ctx context.Context, contentID int64, vector []float64) error {
	args := m.Called(ctx, contentID, vector)
	return args.Error(0)
}

func (m *MockRepository) ContentEmbeddings(ctx context.Context, limit int) ([]storage.ContentEmbedding, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ContentEmbedding), args.Error(1)
}

func (m *MockRepository) LikedContentByUsers(ctx context.Context, userIDs []uuid.UUID, limit int) ([]storage.ContentPick, error) {
	args := m.Called(ctx, userIDs, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.ContentPick), args.Error(1)
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
