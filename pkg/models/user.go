package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSimilarity is one cached pairwise similarity row. UserA and UserB are
// canonically ordered (lexicographic UUID order) so an unordered pair maps to
// exactly one row. Rows are recomputed after a 24h TTL; this is a cache, not
// a source of truth.
type UserSimilarity struct {
	UserA           uuid.UUID `json:"user_a"`
	UserB           uuid.UUID `json:"user_b"`
	Score           float64   `json:"score"`
	CommonInterests []string  `json:"common_interests"`
	SharedViewCount int       `json:"shared_view_count"`
	ComputedAt      time.Time `json:"computed_at"`
}

// UserGenreEmbedding is a binary indicator vector over the fixed genre
// taxonomy. Last-write-wins; may be briefly stale relative to the latest
// recorded events.
type UserGenreEmbedding struct {
	UserID            uuid.UUID `json:"user_id"`
	Vector            []float64 `json:"vector"`
	TotalInteractions int       `json:"total_interactions"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type SimilarUser struct {
	UserID          uuid.UUID `json:"user_id"`
	Score           float64   `json:"score"`
	CommonInterests []string  `json:"common_interests"`
	SharedViewCount int       `json:"shared_view_count"`
}
