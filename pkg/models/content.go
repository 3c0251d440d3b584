package models

import "time"

type MediaType string

const (
	MediaTypeTV    MediaType = "tv"
	MediaTypeMovie MediaType = "movie"
)

// ContentMetric is descriptive metadata for one piece of content.
// TrendingScore and PopularityIndex are written by an external scoring job
// and pass through this service unchanged.
type ContentMetric struct {
	ContentID       int64     `json:"content_id"`
	MediaType       MediaType `json:"media_type"`
	Title           string    `json:"title"`
	Genres          []string  `json:"genres"`
	TrendingScore   float64   `json:"trending_score"`
	PopularityIndex float64   `json:"popularity_index"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ContentUpsertRequest struct {
	ContentID int64     `json:"content_id" validate:"required,gt=0"`
	MediaType MediaType `json:"media_type" validate:"required,oneof=tv movie"`
	Title     string    `json:"title" validate:"required,min=1,max=255"`
	Genres    []string  `json:"genres" validate:"required,min=1"`
}

// ContentMetrics combines stored metadata with aggregate statistics
// recomputed from the raw behavior log on every call.
type ContentMetrics struct {
	ContentMetric
	AverageRating  float64 `json:"average_rating"`
	TotalViews     int64   `json:"total_views"`
	CompletionRate float64 `json:"completion_rate"`
	SkipRate       float64 `json:"skip_rate"`
}
