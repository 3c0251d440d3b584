package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/reelist/engine/internal/catalog"
	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// NewCatalogSource builds the catalog-based candidate source. The external
// catalog service does its own ranking; candidates pass through with
// whatever score it reports.
func NewCatalogSource(client *catalog.Client, cfg *config.Config) CandidateSource {
	return CandidateSource{
		Name: string(models.SourceCatalog),
		Fetch: func(ctx context.Context, req *models.RecommendationRequest) ([]models.Recommendation, error) {
			return client.Recommendations(ctx, req.Profile.FavoriteGenres, req.Filters, cfg.Recommendation.CandidateLimit)
		},
	}
}

// NewModelSource builds the embedding-based candidate source. It scores the
// most popular content embeddings against the user's genre embedding by
// cosine similarity. A user with no embedding yet yields no candidates.
func NewModelSource(repo storage.Repository, cfg *config.Config) CandidateSource {
	return CandidateSource{
		Name: string(models.SourceModel),
		Fetch: func(ctx context.Context, req *models.RecommendationRequest) ([]models.Recommendation, error) {
			embedding, err := repo.GetGenreEmbedding(ctx, req.UserID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if vectorNorm(embedding.Vector) == 0 {
				return nil, nil
			}

			candidates, err := repo.ContentEmbeddings(ctx, cfg.Recommendation.CandidateLimit)
			if err != nil {
				return nil, err
			}

			var recommendations []models.Recommendation
			for _, candidate := range candidates {
				score := cosine(embedding.Vector, candidate.Vector)
				if score <= 0 {
					continue
				}
				score = math.Round(score*100) / 100
				rationale := "matches your favorite genres"
				recommendations = append(recommendations, models.Recommendation{
					ContentID: candidate.ContentID,
					Score:     &score,
					Rationale: &rationale,
				})
			}
			return recommendations, nil
		},
	}
}

// NewSocialSource builds the "viewers like you" candidate source. Neighbors
// come from the similarity engine; their liked and completed content is
// scored by the neighbor's similarity to the requester.
func NewSocialSource(repo storage.Repository, engine SimilarityEngineInterface, cfg *config.Config) CandidateSource {
	return CandidateSource{
		Name: string(models.SourceSocial),
		Fetch: func(ctx context.Context, req *models.RecommendationRequest) ([]models.Recommendation, error) {
			neighbors, err := engine.FindSimilar(ctx, req.UserID, cfg.Similarity.CandidateLimit)
			if err != nil {
				return nil, err
			}
			if len(neighbors) == 0 {
				return nil, nil
			}

			scores := make(map[string]float64, len(neighbors))
			ids := make([]uuid.UUID, 0, len(neighbors))
			for _, neighbor := range neighbors {
				scores[neighbor.UserID.String()] = neighbor.Score
				ids = append(ids, neighbor.UserID)
			}

			picks, err := repo.LikedContentByUsers(ctx, ids, cfg.Recommendation.CandidateLimit)
			if err != nil {
				return nil, err
			}

			var recommendations []models.Recommendation
			for _, pick := range picks {
				confidence := scores[pick.UserID.String()]
				rationale := fmt.Sprintf("watched by a viewer with %.0f%% similar taste", confidence*100)
				recommendations = append(recommendations, models.Recommendation{
					ContentID:  pick.ContentID,
					Confidence: &confidence,
					Rationale:  &rationale,
				})
			}
			return recommendations, nil
		},
	}
}

// cosine returns the cosine similarity of two equal-length vectors, 0 when
// either is degenerate.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := vectorNorm(a)
	normB := vectorNorm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

func vectorNorm(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(v, v))
}
