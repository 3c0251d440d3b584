package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// similarityActions are the interaction kinds that count as taste signal.
// Skips and shares carry no positive preference weight.
var similarityActions = []models.ActionKind{
	models.ActionViewed,
	models.ActionCompleted,
	models.ActionRated,
	models.ActionLiked,
}

// SimilarityEngine computes and caches pairwise user similarity. Scores
// blend content overlap and genre overlap; cached rows expire after the
// configured TTL and are recomputed on demand.
type SimilarityEngine struct {
	repo    storage.Repository
	config  *config.Config
	logger  *logrus.Logger
	metrics *Metrics
}

func NewSimilarityEngine(repo storage.Repository, cfg *config.Config, logger *logrus.Logger, metrics *Metrics) *SimilarityEngine {
	return &SimilarityEngine{repo: repo, config: cfg, logger: logger, metrics: metrics}
}

// FindSimilar returns the most similar users to the target, freshest-cache
// first. On a cache miss it generates candidates from shared content,
// scores them sequentially under the configured cost caps, and writes every
// computed pair back to the cache.
func (e *SimilarityEngine) FindSimilar(ctx context.Context, userID uuid.UUID, limit int) ([]models.SimilarUser, error) {
	if limit <= 0 {
		limit = e.config.Similarity.CandidateLimit
	}

	since := time.Now().UTC().Add(-e.config.Similarity.CacheTTL)
	cached, err := e.repo.SimilaritiesFor(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		if e.metrics != nil {
			e.metrics.SimilarityCacheHits.Inc()
		}
		return toSimilarUsers(userID, cached, limit), nil
	}

	recent, err := e.repo.RecentContentIDs(ctx, userID, e.config.Similarity.HistoryLimit)
	if err != nil {
		return nil, err
	}

	candidates, err := e.repo.UsersSharingContent(ctx, userID, recent, e.config.Similarity.CandidateLimit)
	if err != nil {
		return nil, err
	}

	var results []models.SimilarUser
	for _, candidate := range candidates {
		sim, err := e.Similarity(ctx, userID, candidate)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":   userID,
				"candidate": candidate,
			}).Warn("Failed to score similarity candidate")
			continue
		}
		if sim.Score <= e.config.Similarity.MinScore {
			continue
		}
		results = append(results, models.SimilarUser{
			UserID:          candidate,
			Score:           sim.Score,
			CommonInterests: sim.CommonInterests,
			SharedViewCount: sim.SharedViewCount,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Similarity scores one user pair and writes the result through to the
// cache. The score is symmetric; if either user has no qualifying
// interactions the score is exactly 0 with no common interests.
func (e *SimilarityEngine) Similarity(ctx context.Context, userA, userB uuid.UUID) (*models.UserSimilarity, error) {
	interactionsA, err := e.repo.InteractionContent(ctx, userA, similarityActions)
	if err != nil {
		return nil, err
	}
	interactionsB, err := e.repo.InteractionContent(ctx, userB, similarityActions)
	if err != nil {
		return nil, err
	}

	a, b := storage.CanonicalPair(userA, userB)
	sim := &models.UserSimilarity{
		UserA:           a,
		UserB:           b,
		CommonInterests: []string{},
		ComputedAt:      time.Now().UTC(),
	}

	if len(interactionsA) > 0 && len(interactionsB) > 0 {
		contentA, genresA := interactionSets(interactionsA)
		contentB, genresB := interactionSets(interactionsB)

		sharedContent := intersectionSize(contentA, contentB)
		contentSimilarity := jaccard(sharedContent, len(contentA)+len(contentB)-sharedContent)

		commonGenres := intersectKeys(genresA, genresB)
		genreSimilarity := jaccard(len(commonGenres), len(genresA)+len(genresB)-len(commonGenres))

		weighted := e.config.Similarity.ContentWeight*contentSimilarity + e.config.Similarity.GenreWeight*genreSimilarity
		sim.Score = math.Round(weighted*100) / 100
		sim.CommonInterests = commonGenres
		sim.SharedViewCount = sharedContent
	}

	if err := e.repo.UpsertSimilarity(ctx, sim); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SimilarityComputations.Inc()
	}
	return sim, nil
}

func interactionSets(interactions []storage.ContentInteraction) (map[int64]struct{}, map[string]struct{}) {
	content := make(map[int64]struct{})
	genres := make(map[string]struct{})
	for _, interaction := range interactions {
		content[interaction.ContentID] = struct{}{}
		for _, genre := range interaction.Genres {
			genres[genre] = struct{}{}
		}
	}
	return content, genres
}

func intersectionSize(a, b map[int64]struct{}) int {
	count := 0
	for id := range a {
		if _, ok := b[id]; ok {
			count++
		}
	}
	return count
}

func intersectKeys(a, b map[string]struct{}) []string {
	var common []string
	for key := range a {
		if _, ok := b[key]; ok {
			common = append(common, key)
		}
	}
	sort.Strings(common)
	if common == nil {
		common = []string{}
	}
	return common
}

func jaccard(intersection, union int) float64 {
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSimilarUsers(target uuid.UUID, sims []models.UserSimilarity, limit int) []models.SimilarUser {
	users := make([]models.SimilarUser, 0, len(sims))
	for _, sim := range sims {
		other := sim.UserA
		if other == target {
			other = sim.UserB
		}
		users = append(users, models.SimilarUser{
			UserID:          other,
			Score:           sim.Score,
			CommonInterests: sim.CommonInterests,
			SharedViewCount: sim.SharedViewCount,
		})
	}
	if len(users) > limit {
		users = users[:limit]
	}
	return users
}
