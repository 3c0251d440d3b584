package models

import "github.com/google/uuid"

// RecommendationSource identifies which subsystem produced a candidate.
type RecommendationSource string

const (
	SourceCatalog RecommendationSource = "catalog"
	SourceModel   RecommendationSource = "model"
	SourceSocial  RecommendationSource = "social"
)

// Recommendation is a transient candidate; it is never persisted. Score and
// Confidence are optional because not every source reports both; ranking
// falls back through score, confidence, then a neutral 0.5.
type Recommendation struct {
	ContentID  int64                `json:"content_id"`
	Source     RecommendationSource `json:"source"`
	Score      *float64             `json:"score,omitempty"`
	Confidence *float64             `json:"confidence,omitempty"`
	Rationale  *string              `json:"rationale,omitempty"`
}

// RankValue is the field the merged list is sorted by.
func (r Recommendation) RankValue() float64 {
	if r.Score != nil {
		return *r.Score
	}
	if r.Confidence != nil {
		return *r.Confidence
	}
	return 0.5
}

// RecommendationProfile is the caller-supplied view of the user's lists.
// Every content id in it feeds the exclusion set.
type RecommendationProfile struct {
	FavoriteGenres    []string `json:"favorite_genres,omitempty"`
	PreferredNetworks []string `json:"preferred_networks,omitempty"`
	Watchlist         []int64  `json:"watchlist,omitempty"`
	ViewingHistory    []int64  `json:"viewing_history,omitempty"`
	CurrentlyWatching []int64  `json:"currently_watching,omitempty"`
	RecentlyWatched   []int64  `json:"recently_watched,omitempty"`
}

type RecommendationRequest struct {
	UserID       uuid.UUID             `json:"user_id" validate:"required"`
	Filters      map[string]string     `json:"filters,omitempty"`
	Profile      RecommendationProfile `json:"user_profile"`
	ExcludeShows []int64               `json:"exclude_shows,omitempty"`
	Limit        int                   `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

type SourceSummary struct {
	Count   int  `json:"count"`
	Success bool `json:"success"`
}

type RecommendationMetadata struct {
	Sources          map[string]SourceSummary `json:"sources"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
	ExclusionCount   int                      `json:"exclusion_count"`
}

type RecommendationResponse struct {
	Recommendations []Recommendation       `json:"recommendations"`
	Confidence      float64                `json:"confidence"`
	Metadata        RecommendationMetadata `json:"metadata"`
}
