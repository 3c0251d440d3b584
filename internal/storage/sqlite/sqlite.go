// Package sqlite implements the storage.Repository capability set on an
// embedded sqlite engine. It serves single-node and development deployments;
// the postgres adapter is the multi-node production backend.
//
// Timestamps are stored as INTEGER unix nanoseconds. Text timestamps order
// lexicographically and lose sub-second precision across drivers, so the
// adapter converts at the boundary instead.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/reelist/engine/internal/config"
	"github.com/reelist/engine/internal/storage"
	"github.com/reelist/engine/internal/storage/sqlite/migrations"
	"github.com/reelist/engine/pkg/models"
)

type Store struct {
	db     *sql.DB
	logger *logrus.Logger
	closed atomic.Bool
}

// New opens the database file, applies pragmas for concurrent access, and
// runs any pending migrations.
func New(ctx context.Context, cfg *config.DatabaseConfig, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeInit, "open database", err)
	}

	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, storage.WrapError(storage.ErrCodeInit, "apply pragma", err)
		}
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, storage.WrapError(storage.ErrCodeInit, "set dialect", err)
	}
	if err := goose.Up(db, "."); err != nil {
		db.Close()
		return nil, storage.WrapError(storage.ErrCodeInit, "run migrations", err)
	}

	logger.WithField("path", cfg.Path).Info("SQLite store initialized")
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) ready() error {
	if s.db == nil || s.closed.Load() {
		return storage.ErrNotInitialized
	}
	return nil
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func (s *Store) InsertEvent(ctx context.Context, event *models.BehaviorEvent) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO behavior_events (id, user_id, content_id, action, session_duration, rating, completion_percentage, skip_reason, context, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		event.ID.String(),
		event.UserID.String(),
		event.ContentID,
		string(event.Action),
		event.SessionDuration,
		event.Rating,
		event.CompletionPercentage,
		event.SkipReason,
		storage.EncodeContext(event.Context),
		toNanos(event.Timestamp),
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
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID.String(), limit)
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
		WHERE context IS NOT NULL AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp`

	rows, err := s.db.QueryContext(ctx, query, toNanos(from), toNanos(to))
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "events with context", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.BehaviorEvent, error) {
	var events []models.BehaviorEvent
	for rows.Next() {
		var (
			event      models.BehaviorEvent
			id, userID string
			action     string
			contextRaw []byte
			nanos      int64
		)
		err := rows.Scan(
			&id,
			&userID,
			&event.ContentID,
			&action,
			&event.SessionDuration,
			&event.Rating,
			&event.CompletionPercentage,
			&event.SkipReason,
			&contextRaw,
			&nanos,
		)
		if err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan event", err)
		}
		if event.ID, err = uuid.Parse(id); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "parse event id", err)
		}
		if event.UserID, err = uuid.Parse(userID); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "parse user id", err)
		}
		event.Action = models.ActionKind(action)
		event.Context = storage.DecodeContext(contextRaw)
		event.Timestamp = fromNanos(nanos)
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
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID.String(), limit)
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

	query := fmt.Sprintf(`
		SELECT DISTINCT user_id
		FROM behavior_events
		WHERE content_id IN (%s) AND user_id <> ?
		LIMIT ?`, placeholders(len(contentIDs)))

	args := make([]any, 0, len(contentIDs)+2)
	for _, id := range contentIDs {
		args = append(args, id)
	}
	args = append(args, userID.String(), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "users sharing content", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan user id", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "parse user id", err)
		}
		users = append(users, id)
	}
	return users, storage.WrapError(storage.ErrCodeQuery, "iterate user ids", rows.Err())
}

func (s *Store) InteractionContent(ctx context.Context, userID uuid.UUID, kinds []models.ActionKind) ([]storage.ContentInteraction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT be.content_id, cm.genres
		FROM behavior_events be
		LEFT JOIN content_metrics cm ON cm.content_id = be.content_id
		WHERE be.user_id = ? AND be.action IN (%s)`, placeholders(len(kinds)))

	args := make([]any, 0, len(kinds)+1)
	args = append(args, userID.String())
	for _, k := range kinds {
		args = append(args, string(k))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
		WHERE be.user_id = ?`

	rows, err := s.db.QueryContext(ctx, query, userID.String())
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
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM behavior_events WHERE user_id = ?`, userID.String()).Scan(&total)
	if err != nil {
		return nil, 0, storage.WrapError(storage.ErrCodeQuery, "count events", err)
	}

	return frequencies, total, nil
}

func (s *Store) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM behavior_events WHERE timestamp < ?`, toNanos(cutoff))
	if err != nil {
		return 0, storage.WrapError(storage.ErrCodeUpdate, "delete events", err)
	}
	deleted, err := result.RowsAffected()
	return deleted, storage.WrapError(storage.ErrCodeUpdate, "rows affected", err)
}

func (s *Store) EventCount(ctx context.Context) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM behavior_events`).Scan(&count)
	return count, storage.WrapError(storage.ErrCodeQuery, "event count", err)
}

func (s *Store) LastEventTime(ctx context.Context) (*time.Time, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var nanos sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM behavior_events`).Scan(&nanos)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "last event time", err)
	}
	if !nanos.Valid {
		return nil, nil
	}
	last := fromNanos(nanos.Int64)
	return &last, nil
}

func (s *Store) UpsertContent(ctx context.Context, metric *models.ContentMetric) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO content_metrics (content_id, media_type, title, genres, trending_score, popularity_index, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_id)
		DO UPDATE SET
			media_type = excluded.media_type,
			title = excluded.title,
			genres = excluded.genres,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		metric.ContentID,
		string(metric.MediaType),
		metric.Title,
		storage.EncodeStrings(metric.Genres),
		metric.TrendingScore,
		metric.PopularityIndex,
		toNanos(metric.UpdatedAt),
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
		WHERE content_id = ?`

	var (
		metric    models.ContentMetric
		mediaType string
		genresRaw []byte
		nanos     int64
	)
	err := s.db.QueryRowContext(ctx, query, contentID).Scan(
		&metric.ContentID,
		&mediaType,
		&metric.Title,
		&genresRaw,
		&metric.TrendingScore,
		&metric.PopularityIndex,
		&nanos,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "get content", err)
	}
	metric.MediaType = models.MediaType(mediaType)
	metric.Genres = storage.DecodeStrings(genresRaw)
	metric.UpdatedAt = fromNanos(nanos)
	return &metric, nil
}

func (s *Store) ContentStats(ctx context.Context, contentID int64) (*storage.ContentStats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT
			COUNT(*),
			SUM(CASE WHEN action = 'viewed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = 'skipped' THEN 1 ELSE 0 END),
			AVG(CASE WHEN action = 'rated' AND rating IS NOT NULL THEN rating END),
			SUM(CASE WHEN action = 'rated' AND rating IS NOT NULL THEN 1 ELSE 0 END)
		FROM behavior_events
		WHERE content_id = ?`

	var (
		stats                         storage.ContentStats
		views, completed, skipped, rc sql.NullInt64
		avgRating                     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, query, contentID).Scan(
		&stats.TotalEvents,
		&views,
		&completed,
		&skipped,
		&avgRating,
		&rc,
	)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "content stats", err)
	}
	stats.Views = views.Int64
	stats.Completed = completed.Int64
	stats.Skipped = skipped.Int64
	stats.AverageRating = avgRating.Float64
	stats.RatingCount = rc.Int64
	return &stats, nil
}

func (s *Store) UpdateContentScores(ctx context.Context, contentID int64, trending, popularity float64) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		UPDATE content_metrics
		SET trending_score = ?, popularity_index = ?, updated_at = ?
		WHERE content_id = ?`

	_, err := s.db.ExecContext(ctx, query, trending, popularity, toNanos(time.Now()), contentID)
	return storage.WrapError(storage.ErrCodeUpdate, "update content scores", err)
}

func (s *Store) UpsertSimilarity(ctx context.Context, sim *models.UserSimilarity) error {
	if err := s.ready(); err != nil {
		return err
	}

	userA, userB := storage.CanonicalPair(sim.UserA, sim.UserB)

	query := `
		INSERT INTO user_similarities (user_a, user_b, score, common_interests, shared_view_count, computed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_a, user_b)
		DO UPDATE SET
			score = excluded.score,
			common_interests = excluded.common_interests,
			shared_view_count = excluded.shared_view_count,
			computed_at = excluded.computed_at`

	_, err := s.db.ExecContext(ctx, query,
		userA.String(),
		userB.String(),
		sim.Score,
		storage.EncodeStrings(sim.CommonInterests),
		sim.SharedViewCount,
		toNanos(sim.ComputedAt),
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
		WHERE (user_a = ? OR user_b = ?) AND computed_at >= ?
		ORDER BY score DESC`

	rows, err := s.db.QueryContext(ctx, query, userID.String(), userID.String(), toNanos(since))
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "similarities for user", err)
	}
	defer rows.Close()

	var sims []models.UserSimilarity
	for rows.Next() {
		var (
			sim          models.UserSimilarity
			rawA, rawB   string
			interestsRaw []byte
			nanos        int64
		)
		err := rows.Scan(&rawA, &rawB, &sim.Score, &interestsRaw, &sim.SharedViewCount, &nanos)
		if err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan similarity", err)
		}
		if sim.UserA, err = uuid.Parse(rawA); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "parse user id", err)
		}
		if sim.UserB, err = uuid.Parse(rawB); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "parse user id", err)
		}
		sim.CommonInterests = storage.DecodeStrings(interestsRaw)
		sim.ComputedAt = fromNanos(nanos)
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
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id)
		DO UPDATE SET
			vector = excluded.vector,
			total_interactions = excluded.total_interactions,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		emb.UserID.String(),
		storage.EncodeVector(emb.Vector),
		emb.TotalInteractions,
		toNanos(emb.UpdatedAt),
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
		WHERE user_id = ?`

	var (
		emb       models.UserGenreEmbedding
		raw       string
		vectorRaw []byte
		nanos     int64
	)
	err := s.db.QueryRowContext(ctx, query, userID.String()).Scan(&raw, &vectorRaw, &emb.TotalInteractions, &nanos)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "get genre embedding", err)
	}
	if emb.UserID, err = uuid.Parse(raw); err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "parse user id", err)
	}
	emb.Vector = storage.DecodeVector(vectorRaw)
	emb.UpdatedAt = fromNanos(nanos)
	return &emb, nil
}

func (s *Store) UpsertContentEmbedding(ctx context.Context, contentID int64, vector []float64) error {
	if err := s.ready(); err != nil {
		return err
	}

	query := `
		INSERT INTO content_embeddings (content_id, vector, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (content_id)
		DO UPDATE SET vector = excluded.vector, updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, contentID, storage.EncodeVector(vector), toNanos(time.Now()))
	return storage.WrapError(storage.ErrCodeUpdate, "upsert content embedding", err)
}

func (s *Store) ContentEmbeddings(ctx context.Context, limit int) ([]storage.ContentEmbedding, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT ce.content_id, ce.vector
		FROM content_embeddings ce
		JOIN content_metrics cm ON cm.content_id = ce.content_id
		ORDER BY cm.popularity_index DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
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

	query := fmt.Sprintf(`
		SELECT content_id, user_id
		FROM behavior_events
		WHERE user_id IN (%s) AND action IN ('liked', 'completed')
		ORDER BY timestamp DESC
		LIMIT ?`, placeholders(len(userIDs)))

	args := make([]any, 0, len(userIDs)+1)
	for _, id := range userIDs {
		args = append(args, id.String())
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.WrapError(storage.ErrCodeQuery, "liked content by users", err)
	}
	defer rows.Close()

	var picks []storage.ContentPick
	for rows.Next() {
		var (
			pick storage.ContentPick
			raw  string
		)
		if err := rows.Scan(&pick.ContentID, &raw); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "scan pick", err)
		}
		if pick.UserID, err = uuid.Parse(raw); err != nil {
			return nil, storage.WrapError(storage.ErrCodeQuery, "parse user id", err)
		}
		picks = append(picks, pick)
	}
	return picks, storage.WrapError(storage.ErrCodeQuery, "iterate picks", rows.Err())
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.db.Close()
	s.logger.Info("SQLite store closed")
	return err
}
