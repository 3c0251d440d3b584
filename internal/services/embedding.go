package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

// GenreTaxonomy is the fixed genre vocabulary embeddings are projected
// onto. Vector positions are stable; changing the order invalidates every
// stored embedding.
var GenreTaxonomy = []string{
	"Action", "Adventure", "Animation", "Comedy", "Crime",
	"Documentary", "Drama", "Family", "Fantasy", "History",
	"Horror", "Music", "Mystery", "Romance", "Science Fiction",
	"Sport", "Thriller", "War", "Western",
}

var genreIndex = func() map[string]int {
	index := make(map[string]int, len(GenreTaxonomy))
	for i, genre := range GenreTaxonomy {
		index[genre] = i
	}
	return index
}()

// EmbedGenres projects a genre set onto the taxonomy as a binary indicator
// vector. Unknown genres are ignored.
func EmbedGenres(genres []string) []float64 {
	vector := make([]float64, len(GenreTaxonomy))
	for _, genre := range genres {
		if i, ok := genreIndex[genre]; ok {
			vector[i] = 1.0
		}
	}
	return vector
}

// GenreEmbeddingUpdater maintains per-user taste vectors asynchronously.
// Refresh requests are queued and processed by a background worker; the
// request path that triggers a refresh never waits on it.
type GenreEmbeddingUpdater struct {
	repo        storage.Repository
	config      *config.Config
	logger      *logrus.Logger
	metrics     *Metrics
	refreshChan chan uuid.UUID
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewGenreEmbeddingUpdater(repo storage.Repository, cfg *config.Config, logger *logrus.Logger, metrics *Metrics) *GenreEmbeddingUpdater {
	updater := &GenreEmbeddingUpdater{
		repo:        repo,
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		refreshChan: make(chan uuid.UUID, 1000),
		stopChan:    make(chan struct{}),
	}

	updater.wg.Add(1)
	go updater.worker()

	return updater
}

func (u *GenreEmbeddingUpdater) Stop() {
	close(u.stopChan)
	u.wg.Wait()
}

// Refresh queues a user for recomputation without blocking. A full queue
// drops the request with a warning; the next recorded event retries.
func (u *GenreEmbeddingUpdater) Refresh(userID uuid.UUID) {
	select {
	case u.refreshChan <- userID:
	default:
		u.logger.WithField("user_id", userID).Warn("Embedding refresh queue full")
	}
}

func (u *GenreEmbeddingUpdater) worker() {
	defer u.wg.Done()

	for {
		select {
		case userID := <-u.refreshChan:
			if err := u.refreshUser(context.Background(), userID); err != nil {
				u.logger.WithError(err).WithField("user_id", userID).Error("Failed to refresh genre embedding")
			}

		case <-u.stopChan:
			return
		}
	}
}

// refreshUser recomputes the user's favorite genres and overwrites the
// stored embedding. Last write wins.
func (u *GenreEmbeddingUpdater) refreshUser(ctx context.Context, userID uuid.UUID) error {
	frequencies, total, err := u.repo.UserGenreFrequencies(ctx, userID)
	if err != nil {
		return err
	}

	favorites := topKeys(frequencies, u.config.Similarity.EmbeddingGenres)
	embedding := &models.UserGenreEmbedding{
		UserID:            userID,
		Vector:            EmbedGenres(favorites),
		TotalInteractions: total,
		UpdatedAt:         time.Now().UTC(),
	}

	if err := u.repo.UpsertGenreEmbedding(ctx, embedding); err != nil {
		return err
	}

	if u.metrics != nil {
		u.metrics.EmbeddingRefreshes.Inc()
	}

	u.logger.WithFields(logrus.Fields{
		"user_id":            userID,
		"favorite_genres":    favorites,
		"total_interactions": total,
	}).Debug("Refreshed genre embedding")
	return nil
}
