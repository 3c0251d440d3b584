package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

func TestModelSource(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	cfg := testConfig()

	t.Run("scores candidates by genre cosine", func(t *testing.T) {
		repo := &MockRepository{}
		source := NewModelSource(repo, cfg)

		repo.On("GetGenreEmbedding", ctx, userID).Return(&models.UserGenreEmbedding{
			UserID: userID,
			Vector: EmbedGenres([]string{"Drama", "Crime"}),
		}, nil)
		repo.On("ContentEmbeddings", ctx, cfg.Recommendation.CandidateLimit).
			Return([]storage.ContentEmbedding{
				{ContentID: 1, Vector: EmbedGenres([]string{"Drama", "Crime"})},
				{ContentID: 2, Vector: EmbedGenres([]string{"Horror"})},
			}, nil)

		recs, err := source.Fetch(ctx, &models.RecommendationRequest{UserID: userID})
		require.NoError(t, err)

		// The orthogonal candidate is dropped; the identical one scores 1.
		require.Len(t, recs, 1)
		assert.Equal(t, int64(1), recs[0].ContentID)
		require.NotNil(t, recs[0].Score)
		assert.Equal(t, 1.0, *recs[0].Score)
	})

	t.Run("missing embedding yields no candidates", func(t *testing.T) {
		repo := &MockRepository{}
		source := NewModelSource(repo, cfg)

		repo.On("GetGenreEmbedding", ctx, userID).Return(nil, storage.ErrNotFound)

		recs, err := source.Fetch(ctx, &models.RecommendationRequest{UserID: userID})
		require.NoError(t, err)
		assert.Empty(t, recs)
		repo.AssertNotCalled(t, "ContentEmbeddings", ctx, cfg.Recommendation.CandidateLimit)
	})
}

type fakeSimilarity struct {
	neighbors []models.SimilarUser
	err       error
}

func (f *fakeSimilarity) FindSimilar(ctx context.Context, userID uuid.UUID, limit int) ([]models.SimilarUser, error) {
	return f.neighbors, f.err
}

func (f *fakeSimilarity) Similarity(ctx context.Context, userA, userB uuid.UUID) (*models.UserSimilarity, error) {
	return nil, nil
}

func TestSocialSource(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	cfg := testConfig()

	t.Run("scores neighbor picks by neighbor similarity", func(t *testing.T) {
		repo := &MockRepository{}
		neighbor := uuid.New()
		engine := &fakeSimilarity{neighbors: []models.SimilarUser{{UserID: neighbor, Score: 0.65}}}
		source := NewSocialSource(repo, engine, cfg)

		repo.On("LikedContentByUsers", ctx, []uuid.UUID{neighbor}, cfg.Recommendation.CandidateLimit).
			Return([]storage.ContentPick{{ContentID: 5, UserID: neighbor}}, nil)

		recs, err := source.Fetch(ctx, &models.RecommendationRequest{UserID: userID})
		require.NoError(t, err)

		require.Len(t, recs, 1)
		assert.Equal(t, int64(5), recs[0].ContentID)
		require.NotNil(t, recs[0].Confidence)
		assert.Equal(t, 0.65, *recs[0].Confidence)
	})

	t.Run("no neighbors yields no candidates", func(t *testing.T) {
		repo := &MockRepository{}
		source := NewSocialSource(repo, &fakeSimilarity{}, cfg)

		recs, err := source.Fetch(ctx, &models.RecommendationRequest{UserID: userID})
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestCosine(t *testing.T) {
	assert.Equal(t, 0.0, cosine(nil, nil))
	assert.Equal(t, 0.0, cosine([]float64{0, 0}, []float64{1, 0}))
	assert.InDelta(t, 1.0, cosine([]float64{1, 1}, []float64{1, 1}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
}
