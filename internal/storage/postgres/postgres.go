// Package postgres implements the storage.Repository capability set on a
// networked PostgreSQL engine. It is the multi-node production backend; the
// embedded sqlite adapter covers single-node and development deployments.
package postgres

import (
	"context"
	_ "embed"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// DB is the slice of pgxpool.Pool the store needs. Tests substitute a
// pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type Store struct {
	db     DB
	logger *logrus.Logger
	closed atomic.Bool
}

// New connects a pooled PostgreSQL store and bootstraps the schema.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger *logrus.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeInit, "parse config", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeInit, "create pool", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, storage.WrapError(storage.ErrCodeInit, "ping", err)
	}

	store := &Store{db: pool, logger: logger}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, storage.WrapError(storage.ErrCodeInit, "bootstrap schema", err)
	}

	logger.Info("PostgreSQL store initialized")
	return store, nil
}

// NewWithDB wraps an existing connection; schema bootstrap is the caller's
// responsibility. Used by tests.
func NewWithDB(db DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) ready() error {
	if s.db == nil || s.closed.Load() {
		return storage.ErrNotInitialized
	}
	return nil
}

func (s *Store) InsertEvent(ctx context.Context, event *models.BehaviorEvent) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO behavior_events (id, user_id, content_id, action, session_duration, rating, completion_percentage, skip_reason, context, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.ContentID,
		string(event.Action),
		event.SessionDuration,
		event.Rating,
		event.CompletionPercentage,
		event.SkipReason,
		storage.EncodeContext(event.Context),
		event.Timestamp,
	)
	return storage.WrapError(storage.ErrCodeRecord, "insert event", err)
}

func (s *Store) EventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.BehaviorEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, content_id, action, session_duration, rating, completion_percentage, skip_reason, context, timestamp
		FROM behavior_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "events by user", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *Store) EventsWithContext(ctx context.Context, from, to time.Time) ([]models.BehaviorEvent, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, content_id, action, session_duration, rating, completion_percentage, skip_reason, context, timestamp
		FROM behavior_events
		WHERE context IS NOT NULL AND timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp`

	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "events with context", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]models.BehaviorEvent, error) {
	var events []models.BehaviorEvent
	for rows.Next() {
		var (
			event      models.BehaviorEvent
			action     string
			contextRaw []byte
		)
		err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.ContentID,
			&action,
			&event.SessionDuration,
			&event.Rating,
			&event.CompletionPercentage,
			&event.SkipReason,
			&contextRaw,
			&event.Timestamp,
		)
		if err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan event", err)
		}
		event.Action = models.ActionKind(action)
		event.Context = storage.DecodeContext(contextRaw)
		events = append(events, event)
	}
	return events, storage.WrapError(storage.ErrCodeQuery, "iterate events", rows.Err())
}

func (s *Store) RecentContentIDs(ctx context.Context, userID uuid.UUID, limit int) ([]int64, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT content_id
		FROM behavior_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "recent content ids", err)
	}
	defer rows.Close()

	seen := make(map[int64]bool)
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan content id", err)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, storage.WrapError(storage.ErrCodeQuery, "iterate content ids", rows.Err())
}

func (s *Store) UsersSharingContent(ctx context.Context, userID uuid.UUID, contentIDs []int64, limit int) ([]uuid.UUID, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(contentIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT user_id
		FROM behavior_events
		WHERE content_id = ANY($1) AND user_id <> $2
		LIMIT $3`

	rows, err := s.db.Query(ctx, query, contentIDs, userID, limit)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "users sharing content", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan user id", err)
		}
		users = append(users, id)
	}
	return users, storage.WrapError(storage.ErrCodeQuery, "iterate user ids", rows.Err())
}

func (s *Store) InteractionContent(ctx context.Context, userID uuid.UUID, kinds []models.ActionKind) ([]storage.ContentInteraction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	actions := make([]string, len(kinds))
	for i, k := range kinds {
		actions[i] = string(k)
	}

	query := `
		SELECT be.content_id, cm.genres
		FROM behavior_events be
		LEFT JOIN content_metrics cm ON cm.content_id = be.content_id
		WHERE be.user_id = $1 AND be.action = ANY($2)`

	rows, err := s.db.Query(ctx, query, userID, actions)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "interaction content", err)
	}
	defer rows.Close()

	var interactions []storage.ContentInteraction
	for rows.Next() {
		var (
			contentID int64
			genresRaw []byte
		)
		if err := rows.Scan(&contentID, &genresRaw); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan interaction", err)
		}
		interactions = append(interactions, storage.ContentInteraction{
			ContentID: contentID,
			Genres:    storage.DecodeStrings(genresRaw),
		})
	}
	return interactions, storage.WrapError(storage.ErrCodeQuery, "iterate interactions", rows.Err())
}

func (s *Store) UserGenreFrequencies(ctx context.Context, userID uuid.UUID) (map[string]int, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT cm.genres
		FROM behavior_events be
		JOIN content_metrics cm ON cm.content_id = be.content_id
		WHERE be.user_id = $1`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, 0, storage.WrapError(storage.ErrCodeQuery, "genre frequencies", err)
	}
	defer rows.Close()

	frequencies := make(map[string]int)
	for rows.Next() {
		var genresRaw []byte
		if err := rows.Scan(&genresRaw); err != nil {
			return nil, 0, storage.WrapError(storage.ErrCodeQuery, "scan genres", err)
		}
		for _, genre := range storage.DecodeStrings(genresRaw) {
			frequencies[genre]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storage.WrapError(storage.ErrCodeQuery, "iterate genres", err)
	}

	var total int
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM behavior_events WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, storage.WrapError(storage.ErrCodeQuery, "count events", err)
	}

	return frequencies, total, nil
}

func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM behavior_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, storage.WrapError(storage.ErrCodeUpdate, "delete events", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) EventCount(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM behavior_events`).Scan(&count)
	return count, storage.WrapError(storage.ErrCodeQuery, "event count", err)
}

func (s *Store) LastEventTime(ctx context.Context) (*time.Time, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var last *time.Time
	err := s.db.QueryRow(ctx, `SELECT MAX(timestamp) FROM behavior_events`).Scan(&last)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "last event time", err)
	}
	return last, nil
}

func (s *Store) UpsertContent(ctx context.Context, metric *models.ContentMetric) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO content_metrics (content_id, media_type, title, genres, trending_score, popularity_index, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (content_id)
		DO UPDATE SET
			media_type = EXCLUDED.media_type,
			title = EXCLUDED.title,
			genres = EXCLUDED.genres,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query,
		metric.ContentID,
		string(metric.MediaType),
		metric.Title,
		storage.EncodeStrings(metric.Genres),
		metric.TrendingScore,
		metric.PopularityIndex,
		metric.UpdatedAt,
	)
	return storage.WrapError(storage.ErrCodeUpdate, "upsert content", err)
}

func (s *Store) GetContent(ctx context.Context, contentID int64) (*models.ContentMetric, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT content_id, media_type, title, genres, trending_score, popularity_index, updated_at
		FROM content_metrics
		WHERE content_id = $1`

	var (
		metric    models.ContentMetric
		mediaType string
		genresRaw []byte
	)
	err := s.db.QueryRow(ctx, query, contentID).Scan(
		&metric.ContentID,
		&mediaType,
		&metric.Title,
		&genresRaw,
		&metric.TrendingScore,
		&metric.PopularityIndex,
		&metric.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "get content", err)
	}
	metric.MediaType = models.MediaType(mediaType)
	metric.Genres = storage.DecodeStrings(genresRaw)
	return &metric, nil
}

func (s *Store) ContentStats(ctx context.Context, contentID int64) (*storage.ContentStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE action = 'viewed'),
			COUNT(*) FILTER (WHERE action = 'completed'),
			COUNT(*) FILTER (WHERE action = 'skipped'),
			AVG(rating) FILTER (WHERE action = 'rated' AND rating IS NOT NULL),
			COUNT(*) FILTER (WHERE action = 'rated' AND rating IS NOT NULL)
		FROM behavior_events
		WHERE content_id = $1`

	var (
		stats     storage.ContentStats
		avgRating *float64
	)
	err := s.db.QueryRow(ctx, query, contentID).Scan(
		&stats.TotalEvents,
		&stats.Views,
		&stats.Completed,
		&stats.Skipped,
		&avgRating,
		&stats.RatingCount,
	)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "content stats", err)
	}
	if avgRating != nil {
		stats.AverageRating = *avgRating
	}
	return &stats, nil
}

func (s *Store) UpdateContentScores(ctx context.Context, contentID int64, trending, popularity float64) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		UPDATE content_metrics
		SET trending_score = $2, popularity_index = $3, updated_at = $4
		WHERE content_id = $1`

	_, err := s.db.Exec(ctx, query, contentID, trending, popularity, time.Now())
	return storage.WrapError(storage.ErrCodeUpdate, "update content scores", err)
}

func (s *Store) UpsertSimilarity(ctx context.Context, sim *models.UserSimilarity) error {
	if err := s.ready(); err != nil {
		return err
	}

	userA, userB := storage.CanonicalPair(sim.UserA, sim.UserB)

	query := `
		INSERT INTO user_similarities (user_a, user_b, score, common_interests, shared_view_count, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_a, user_b)
		DO UPDATE SET
			score = EXCLUDED.score,
			common_interests = EXCLUDED.common_interests,
			shared_view_count = EXCLUDED.shared_view_count,
			computed_at = EXCLUDED.computed_at`

	_, err := s.db.Exec(ctx, query,
		userA,
		userB,
		sim.Score,
		storage.EncodeStrings(sim.CommonInterests),
		sim.SharedViewCount,
		sim.ComputedAt,
	)
	return storage.WrapError(storage.ErrCodeUpdate, "upsert similarity", err)
}

func (s *Store) SimilaritiesFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.UserSimilarity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT user_a, user_b, score, common_interests, shared_view_count, computed_at
		FROM user_similarities
		WHERE (user_a = $1 OR user_b = $1) AND computed_at >= $2
		ORDER BY score DESC`

	rows, err := s.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "similarities for user", err)
	}
	defer rows.Close()

	var sims []models.UserSimilarity
	for rows.Next() {
		var (
			sim          models.UserSimilarity
			interestsRaw []byte
		)
		err := rows.Scan(&sim.UserA, &sim.UserB, &sim.Score, &interestsRaw, &sim.SharedViewCount, &sim.ComputedAt)
		if err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan similarity", err)
		}
		sim.CommonInterests = storage.DecodeStrings(interestsRaw)
		sims = append(sims, sim)
	}
	return sims, storage.WrapError(storage.ErrCodeQuery, "iterate similarities", rows.Err())
}

func (s *Store) UpsertGenreEmbedding(ctx context.Context, emb *models.UserGenreEmbedding) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO user_genre_embeddings (user_id, vector, total_interactions, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET
			vector = EXCLUDED.vector,
			total_interactions = EXCLUDED.total_interactions,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query,
		emb.UserID,
		storage.EncodeVector(emb.Vector),
		emb.TotalInteractions,
		emb.UpdatedAt,
	)
	return storage.WrapError(storage.ErrCodeUpdate, "upsert genre embedding", err)
}

func (s *Store) GetGenreEmbedding(ctx context.Context, userID uuid.UUID) (*models.UserGenreEmbedding, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, vector, total_interactions, updated_at
		FROM user_genre_embeddings
		WHERE user_id = $1`

	var (
		emb       models.UserGenreEmbedding
		vectorRaw []byte
	)
	err := s.db.QueryRow(ctx, query, userID).Scan(&emb.UserID, &vectorRaw, &emb.TotalInteractions, &emb.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "get genre embedding", err)
	}
	emb.Vector = storage.DecodeVector(vectorRaw)
	return &emb, nil
}

func (s *Store) UpsertContentEmbedding(ctx context.Context, contentID int64, vector []float64) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO content_embeddings (content_id, vector, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_id)
		DO UPDATE SET vector = EXCLUDED.vector, updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(ctx, query, contentID, storage.EncodeVector(vector), time.Now())
	return storage.WrapError(storage.ErrCodeUpdate, "upsert content embedding", err)
}

func (s *Store) ContentEmbeddings(ctx context.Context, limit int) ([]storage.ContentEmbedding, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	// Popularity-ranked so the model source scores the strongest candidates.
	query := `
		SELECT ce.content_id, ce.vector
		FROM content_embeddings ce
		JOIN content_metrics cm ON cm.content_id = ce.content_id
		ORDER BY cm.popularity_index DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "content embeddings", err)
	}
	defer rows.Close()

	var embeddings []storage.ContentEmbedding
	for rows.Next() {
		var (
			emb       storage.ContentEmbedding
			vectorRaw []byte
		)
		if err := rows.Scan(&emb.ContentID, &vectorRaw); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan content embedding", err)
		}
		emb.Vector = storage.DecodeVector(vectorRaw)
		embeddings = append(embeddings, emb)
	}
	return embeddings, storage.WrapError(storage.ErrCodeQuery, "iterate content embeddings", rows.Err())
}

func (s *Store) LikedContentByUsers(ctx context.Context, userIDs []uuid.UUID, limit int) ([]storage.ContentPick, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT content_id, user_id
		FROM behavior_events
		WHERE user_id = ANY($1) AND action IN ('liked', 'completed')
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userIDs, limit)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "liked content by users", err)
	}
	defer rows.Close()

	var picks []storage.ContentPick
	for rows.Next() {
		var pick storage.ContentPick
		if err := rows.Scan(&pick.ContentID, &pick.UserID); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan pick", err)
		}
		picks = append(picks, pick)
	}
	return picks, storage.WrapError(storage.ErrCodeQuery, "iterate picks", rows.Err())
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.db.Close()
	s.logger.Info("PostgreSQL store closed")
	return nil
}
