package services

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/pkg/models"
)

// filterSentinels are filter values that mean "no constraint" and are
// stripped before any source sees them.
var filterSentinels = map[string]bool{
	"":    true,
	"all": true,
	"any": true,
}

// RecommendationAggregator fans a request out to independent candidate
// sources and merges the settled results. Stateless per request; a failed
// source contributes an empty list, never an aborted response.
type RecommendationAggregator struct {
	sources []CandidateSource
	cache   *redis.Client
	config  *config.Config
	logger  *logrus.Logger
	metrics *Metrics
}

type sourceResult struct {
	index      int
	name       string
	candidates []models.Recommendation
	err        error
}

func NewRecommendationAggregator(sources []CandidateSource, cache *redis.Client, cfg *config.Config, logger *logrus.Logger, metrics *Metrics) *RecommendationAggregator {
	return &RecommendationAggregator{
		sources: sources,
		cache:   cache,
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// GetRecommendations runs sanitize, parallel fetch, tag, merge, rank,
// truncate, and summarize. All sources settle before merging; there is no
// per-source timeout, so a slow source delays the response rather than
// being dropped.
func (a *RecommendationAggregator) GetRecommendations(ctx context.Context, req *models.RecommendationRequest) (*models.RecommendationResponse, error) {
	start := time.Now()

	req.Filters = SanitizeFilters(req.Filters)
	exclusions := buildExclusions(req)

	if cached := a.cachedResponse(ctx, req, exclusions); cached != nil {
		return cached, nil
	}

	results := make([]sourceResult, len(a.sources))
	var wg sync.WaitGroup
	for i, source := range a.sources {
		wg.Add(1)
		go func(i int, source CandidateSource) {
			defer wg.Done()
			candidates, err := source.Fetch(ctx, req)
			results[i] = sourceResult{index: i, name: source.Name, candidates: candidates, err: err}
		}(i, source)
	}
	wg.Wait()

	summaries := make(map[string]models.SourceSummary, len(results))
	var merged []models.Recommendation
	seen := make(map[int64]bool)

	for _, result := range results {
		if result.err != nil {
			a.logger.WithError(result.err).WithField("source", result.name).Warn("Recommendation source failed")
			if a.metrics != nil {
				a.metrics.SourceFailures.WithLabelValues(result.name).Inc()
			}
			summaries[result.name] = models.SourceSummary{Count: 0, Success: false}
			continue
		}

		for _, candidate := range result.candidates {
			candidate.Source = models.RecommendationSource(result.name)
			if seen[candidate.ContentID] || exclusions[candidate.ContentID] {
				continue
			}
			seen[candidate.ContentID] = true
			merged = append(merged, candidate)
		}
		summaries[result.name] = models.SourceSummary{Count: len(result.candidates), Success: true}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RankValue() > merged[j].RankValue()
	})

	limit := req.Limit
	if limit <= 0 {
		limit = a.config.Recommendation.DefaultLimit
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []models.Recommendation{}
	}

	response := &models.RecommendationResponse{
		Recommendations: merged,
		Confidence:      meanRankValue(merged),
		Metadata: models.RecommendationMetadata{
			Sources:          summaries,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			ExclusionCount:   len(exclusions),
		},
	}

	if a.metrics != nil {
		a.metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	}
	a.storeResponse(ctx, req, exclusions, response)

	return response, nil
}

// SanitizeFilters drops entries carrying sentinel "no constraint" values.
func SanitizeFilters(filters map[string]string) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	sanitized := make(map[string]string, len(filters))
	for key, value := range filters {
		if filterSentinels[strings.ToLower(strings.TrimSpace(value))] {
			continue
		}
		sanitized[key] = value
	}
	if len(sanitized) == 0 {
		return nil
	}
	return sanitized
}

// buildExclusions unions every caller-supplied list of already-known
// content ids.
func buildExclusions(req *models.RecommendationRequest) map[int64]bool {
	exclusions := make(map[int64]bool)
	for _, list := range [][]int64{
		req.Profile.Watchlist,
		req.Profile.ViewingHistory,
		req.Profile.CurrentlyWatching,
		req.Profile.RecentlyWatched,
		req.ExcludeShows,
	} {
		for _, id := range list {
			exclusions[id] = true
		}
	}
	return exclusions
}

func meanRankValue(recommendations []models.Recommendation) float64 {
	if len(recommendations) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range recommendations {
		sum += rec.RankValue()
	}
	return sum / float64(len(recommendations))
}

// cacheKey hashes the request's identity fields, exclusion set included,
// so equivalent requests share a cache slot.
func (a *RecommendationAggregator) cacheKey(req *models.RecommendationRequest, exclusions map[int64]bool) string {
	hasher := fnv.New64a()
	fmt.Fprintf(hasher, "%s|%d", req.UserID, req.Limit)

	keys := make([]string, 0, len(req.Filters))
	for key := range req.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(hasher, "|%s=%s", key, req.Filters[key])
	}

	excluded := make([]int64, 0, len(exclusions))
	for id := range exclusions {
		excluded = append(excluded, id)
	}
	sort.Slice(excluded, func(i, j int) bool { return excluded[i] < excluded[j] })
	for _, id := range excluded {
		fmt.Fprintf(hasher, "|x%d", id)
	}
	return fmt.Sprintf("recommendations:%x", hasher.Sum64())
}

func (a *RecommendationAggregator) cachedResponse(ctx context.Context, req *models.RecommendationRequest, exclusions map[int64]bool) *models.RecommendationResponse {
	if a.cache == nil {
		return nil
	}
	raw, err := a.cache.Get(ctx, a.cacheKey(req, exclusions)).Result()
	if err != nil {
		return nil
	}
	var response models.RecommendationResponse
	if json.Unmarshal([]byte(raw), &response) != nil {
		return nil
	}
	return &response
}

func (a *RecommendationAggregator) storeResponse(ctx context.Context, req *models.RecommendationRequest, exclusions map[int64]bool, response *models.RecommendationResponse) {
	if a.cache == nil {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, a.cacheKey(req, exclusions), raw, a.config.Recommendation.ResponseTTL).Err(); err != nil {
		a.logger.WithError(err).Warn("Failed to cache recommendation response")
	}
}
