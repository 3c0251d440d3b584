package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

func interactions(genres []string, contentIDs ...int64) []storage.ContentInteraction {
	out := make([]storage.ContentInteraction, len(contentIDs))
	for i, id := range contentIDs {
		out[i] = storage.ContentInteraction{ContentID: id, Genres: genres}
	}
	return out
}

func TestSimilarityEngine_Similarity(t *testing.T) {
	ctx := context.Background()
	userA := uuid.New()
	userB := uuid.New()

	t.Run("blends content and genre overlap", func(t *testing.T) {
		repo := &MockRepository{}
		engine := NewSimilarityEngine(repo, testConfig(), testLogger(), nil)

		// A viewed {1,2,3}, B viewed {2,3,4}, both all Drama.
		// content 2/4 = 0.5, genre 1/1 = 1.0, combined 0.65.
		repo.On("InteractionContent", ctx, userA, similarityActions).
			Return(interactions([]string{"Drama"}, 1, 2, 3), nil)
		repo.On("InteractionContent", ctx, userB, similarityActions).
			Return(interactions([]string{"Drama"}, 2, 3, 4), nil)
		repo.On("UpsertSimilarity", ctx, mock.AnythingOfType("*models.UserSimilarity")).Return(nil)

		sim, err := engine.Similarity(ctx, userA, userB)
		require.NoError(t, err)

		assert.Equal(t, 0.65, sim.Score)
		assert.Equal(t, []string{"Drama"}, sim.CommonInterests)
		assert.Equal(t, 2, sim.SharedViewCount)
		repo.AssertCalled(t, "UpsertSimilarity", ctx, mock.AnythingOfType("*models.UserSimilarity"))
	})

	t.Run("is symmetric", func(t *testing.T) {
		repo := &MockRepository{}
		engine := NewSimilarityEngine(repo, testConfig(), testLogger(), nil)

		repo.On("InteractionContent", ctx, userA, similarityActions).
			Return(interactions([]string{"Comedy", "Drama"}, 10, 11), nil)
		repo.On("InteractionContent", ctx, userB, similarityActions).
			Return(interactions([]string{"Drama"}, 11, 12, 13), nil)
		repo.On("UpsertSimilarity", ctx, mock.AnythingOfType("*models.UserSimilarity")).Return(nil)

		forward, err := engine.Similarity(ctx, userA, userB)
		require.NoError(t, err)
		backward, err := engine.Similarity(ctx, userB, userA)
		require.NoError(t, err)

		assert.Equal(t, forward.Score, backward.Score)
		assert.Equal(t, forward.UserA, backward.UserA)
		assert.Equal(t, forward.UserB, backward.UserB)
	})

	t.Run("empty interaction set scores exactly zero", func(t *testing.T) {
		repo := &MockRepository{}
		engine := NewSimilarityEngine(repo, testConfig(), testLogger(), nil)

		repo.On("InteractionContent", ctx, userA, similarityActions).
			Return(interactions([]string{"Drama"}, 1, 2), nil)
		repo.On("InteractionContent", ctx, userB, similarityActions).
			Return([]storage.ContentInteraction{}, nil)
		repo.On("UpsertSimilarity", ctx, mock.AnythingOfType("*models.UserSimilarity")).Return(nil)

		sim, err := engine.Similarity(ctx, userA, userB)
		require.NoError(t, err)

		assert.Equal(t, 0.0, sim.Score)
		assert.Empty(t, sim.CommonInterests)
		assert.Equal(t, 0, sim.SharedViewCount)
	})

	t.Run("canonical pair ordering", func(t *testing.T) {
		repo := &MockRepository{}
		engine := NewSimilarityEngine(repo, testConfig(), testLogger(), nil)

		repo.On("InteractionContent", ctx, mock.Anything, similarityActions).
			Return(interactions([]string{"Drama"}, 1), nil)

		var stored *models.UserSimilarity
		repo.On("UpsertSimilarity", ctx, mock.AnythingOfType("*models.UserSimilarity")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*models.UserSimilarity)
			}).Return(nil)

		_, err := engine.Similarity(ctx, userB, userA)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.UserA.String() < stored.UserB.String())
	})
}

func TestSimilarityEngine_FindSimilar(t *testing.T) {
	ctx := context.Background()
	target := uuid.New()

	t.Run("serves fresh cached rows without recomputing", func(t *testing.T) {
		repo := &MockRepository{}
		engine := NewSimilarityEngine(repo, testConfig(), testLogger(), nil)

		other := uuid.New()
		a, b := storage.CanonicalPair(target, other)
		cached := []models.UserSimilarity{{
			UserA:           a,
			UserB:           b,
			Score:           0.8,
			CommonInterests: []string{"Drama"},
			SharedViewCount: 3,
			ComputedAt:      time.Now(),
		}}
		repo.On("SimilaritiesFor", ctx, target, mock.AnythingOfType("time.Time")).Return(cached, nil)

		similar, err := engine.FindSimilar(ctx, target, 10)
		require.NoError(t, err)

		require.Len(t, similar, 1)
		assert.Equal(t, other, similar[0].UserID)
		assert.Equal(t, 0.8, similar[0].Score)
		repo.AssertNotCalled(t, "RecentContentIDs", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("computes on cache miss and filters weak scores", func(t *testing.T) {
		repo := &MockRepository{}
		cfg := testConfig()
		engine := NewSimilarityEngine(repo, cfg, testLogger(), nil)

		strong := uuid.New()
		weak := uuid.New()

		repo.On("SimilaritiesFor", ctx, target, mock.AnythingOfType("time.Time")).
			Return([]models.UserSimilarity{}, nil)
		repo.On("RecentContentIDs", ctx, target, cfg.Similarity.HistoryLimit).
			Return([]int64{1, 2, 3}, nil)
		repo.On("UsersSharingContent", ctx, target, []int64{1, 2, 3}, cfg.Similarity.CandidateLimit).
			Return([]uuid.UUID{strong, weak}, nil)

		repo.On("InteractionContent", ctx, target, similarityActions).
			Return(interactions([]string{"Drama"}, 1, 2, 3), nil)
		repo.On("InteractionContent", ctx, strong, similarityActions).
			Return(interactions([]string{"Drama"}, 2, 3, 4), nil)
		// Weak candidate shares nothing: content 0, genres disjoint.
		repo.On("InteractionContent", ctx, weak, similarityActions).
			Return(interactions([]string{"Horror"}, 99), nil)
		repo.On("UpsertSimilarity", ctx, mock.AnythingOfType("*models.UserSimilarity")).Return(nil)

		similar, err := engine.FindSimilar(ctx, target, 10)
		require.NoError(t, err)

		require.Len(t, similar, 1)
		assert.Equal(t, strong, similar[0].UserID)
		assert.Equal(t, 0.65, similar[0].Score)
	})

	t.Run("never yields the target itself", func(t *testing.T) {
		repo := &MockRepository{}
		cfg := testConfig()
		engine := NewSimilarityEngine(repo, cfg, testLogger(), nil)

		repo.On("SimilaritiesFor", ctx, target, mock.AnythingOfType("time.Time")).
			Return([]models.UserSimilarity{}, nil)
		repo.On("RecentContentIDs", ctx, target, cfg.Similarity.HistoryLimit).
			Return([]int64{1}, nil)
		// The candidate query excludes the target by contract.
		repo.On("UsersSharingContent", ctx, target, []int64{1}, cfg.Similarity.CandidateLimit).
			Return([]uuid.UUID{}, nil)

		similar, err := engine.FindSimilar(ctx, target, 10)
		require.NoError(t, err)
		assert.Empty(t, similar)
	})
}
