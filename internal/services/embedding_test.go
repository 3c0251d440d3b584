package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelist/engine/pkg/models"
)

func TestEmbedGenres(t *testing.T) {
	t.Run("binary indicator over the taxonomy", func(t *testing.T) {
		vector := EmbedGenres([]string{"Drama", "Comedy"})

		require.Len(t, vector, len(GenreTaxonomy))
		assert.Equal(t, 1.0, vector[genreIndex["Drama"]])
		assert.Equal(t, 1.0, vector[genreIndex["Comedy"]])

		var sum float64
		for _, v := range vector {
			sum += v
		}
		assert.Equal(t, 2.0, sum)
	})

	t.Run("unknown genres are ignored", func(t *testing.T) {
		vector := EmbedGenres([]string{"Telenovela"})
		for _, v := range vector {
			assert.Equal(t, 0.0, v)
		}
	})
}

func TestGenreEmbeddingUpdater_RefreshUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	repo := &MockRepository{}
	updater := NewGenreEmbeddingUpdater(repo, testConfig(), testLogger(), nil)
	defer updater.Stop()

	repo.On("UserGenreFrequencies", ctx, userID).
		Return(map[string]int{
			"Drama":   9,
			"Comedy":  7,
			"Crime":   5,
			"Horror":  3,
			"Romance": 2,
			"Western": 1,
		}, 27, nil)

	var stored *models.UserGenreEmbedding
	repo.On("UpsertGenreEmbedding", ctx, mock.AnythingOfType("*models.UserGenreEmbedding")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*models.UserGenreEmbedding)
		}).Return(nil)

	require.NoError(t, updater.refreshUser(ctx, userID))
	require.NotNil(t, stored)

	assert.Equal(t, userID, stored.UserID)
	assert.Equal(t, 27, stored.TotalInteractions)

	// Top 5 genres set; the sixth is dropped.
	var active float64
	for _, v := range stored.Vector {
		active += v
	}
	assert.Equal(t, 5.0, active)
	assert.Equal(t, 0.0, stored.Vector[genreIndex["Western"]])
	assert.Equal(t, 1.0, stored.Vector[genreIndex["Drama"]])
}

func TestGenreEmbeddingUpdater_RefreshQueueFull(t *testing.T) {
	repo := &MockRepository{}
	updater := &GenreEmbeddingUpdater{
		repo:        repo,
		config:      testConfig(),
		logger:      testLogger(),
		refreshChan: make(chan uuid.UUID), // unbuffered, nothing draining
		stopChan:    make(chan struct{}),
	}

	// Must not block.
	updater.Refresh(uuid.New())
}
