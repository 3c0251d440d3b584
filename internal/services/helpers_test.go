package services

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		Similarity: config.SimilarityConfig{
			ContentWeight:   0.7,
			GenreWeight:     0.3,
			MinScore:        0.1,
			CandidateLimit:  20,
			HistoryLimit:    50,
			CacheTTL:        24 * time.Hour,
			EmbeddingGenres: 5,
		},
		Recommendation: config.RecommendationConfig{
			DefaultLimit:   12,
			CandidateLimit: 50,
			ResponseTTL:    15 * time.Minute,
		},
		Retention: config.RetentionConfig{Days: 90},
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
