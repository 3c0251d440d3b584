package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/reelist/engine/pkg/models"
)

// ContentInteraction is one (content, genres) pair from a user's history,
// used for pairwise similarity.
type ContentInteraction struct {
	ContentID int64
	Genres    []string
}

// ContentStats are raw aggregate counts for one piece of content, recomputed
// from the behavior log on every call.
type ContentStats struct {
	TotalEvents   int64
	Views         int64
	Completed     int64
	Skipped       int64
	AverageRating float64
	RatingCount   int64
}

// ContentEmbedding is a content's binary genre vector over the taxonomy.
type ContentEmbedding struct {
	ContentID int64
	Vector    []float64
}

// ContentPick is a positively-rated content id together with the user who
// produced the signal. The social recommendation source scores picks by the
// picking neighbor's similarity.
type ContentPick struct {
	ContentID int64
	UserID    uuid.UUID
}

// Repository is the fixed capability set the analytics core requires of a
// relational backend. Two interchangeable adapters implement it: a networked
// postgres engine and a file-based embedded sqlite engine. Backend selection
// is deployment configuration; callers never branch on the engine.
type Repository interface {
	// Behavior event log (append-only; deletes only via retention).
	InsertEvent(ctx context.Context, event *models.BehaviorEvent) error
	EventsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.BehaviorEvent, error)
	EventsWithContext(ctx context.Context, from, to time.Time) ([]models.BehaviorEvent, error)
	RecentContentIDs(ctx context.Context, userID uuid.UUID, limit int) ([]int64, error)
	UsersSharingContent(ctx context.Context, userID uuid.UUID, contentIDs []int64, limit int) ([]uuid.UUID, error)
	InteractionContent(ctx context.Context, userID uuid.UUID, kinds []models.ActionKind) ([]ContentInteraction, error)
	UserGenreFrequencies(ctx context.Context, userID uuid.UUID) (map[string]int, int, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	EventCount(ctx context.Context) (int64, error)
	LastEventTime(ctx context.Context) (*time.Time, error)

	// Content metrics (descriptive metadata plus foreign trending state).
	UpsertContent(ctx context.Context, metric *models.ContentMetric) error
	GetContent(ctx context.Context, contentID int64) (*models.ContentMetric, error)
	ContentStats(ctx context.Context, contentID int64) (*ContentStats, error)
	UpdateContentScores(ctx context.Context, contentID int64, trending, popularity float64) error

	// Pairwise similarity cache (canonical pair key, insert-or-replace).
	UpsertSimilarity(ctx context.Context, sim *models.UserSimilarity) error
	SimilaritiesFor(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.UserSimilarity, error)

	// Embeddings.
	UpsertGenreEmbedding(ctx context.Context, emb *models.UserGenreEmbedding) error
	GetGenreEmbedding(ctx context.Context, userID uuid.UUID) (*models.UserGenreEmbedding, error)
	UpsertContentEmbedding(ctx context.Context, contentID int64, vector []float64) error
	ContentEmbeddings(ctx context.Context, limit int) ([]ContentEmbedding, error)
	LikedContentByUsers(ctx context.Context, userIDs []uuid.UUID, limit int) ([]ContentPick, error)

	Ping(ctx context.Context) error
	Close() error
}

// DecodeStrings decodes a JSON string-array column. Malformed data degrades
// to nil, never an error.
func DecodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// EncodeStrings serializes a string slice for a JSON side column.
func EncodeStrings(values []string) []byte {
	if values == nil {
		values = []string{}
	}
	raw, _ := json.Marshal(values)
	return raw
}

// DecodeVector decodes a JSON float-array column, degrading to nil on
// malformed data.
func DecodeVector(raw []byte) []float64 {
	if len(raw) == 0 {
		return nil
	}
	var out []float64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// EncodeVector serializes an embedding vector for a JSON side column.
func EncodeVector(vector []float64) []byte {
	if vector == nil {
		vector = []float64{}
	}
	raw, _ := json.Marshal(vector)
	return raw
}

// DecodeContext decodes the serialized event context. Malformed blobs
// degrade to nil rather than failing the read.
func DecodeContext(raw []byte) *models.EventContext {
	if len(raw) == 0 {
		return nil
	}
	var ctx models.EventContext
	if err := json.Unmarshal(raw, &ctx); err != nil {
		return nil
	}
	return &ctx
}

// EncodeContext serializes an event context, returning nil for absent
// context so the column stays NULL.
func EncodeContext(ctx *models.EventContext) []byte {
	if ctx == nil {
		return nil
	}
	raw, _ := json.Marshal(ctx)
	return raw
}

// CanonicalPair orders an unordered user pair so each pair maps to exactly
// one similarity row.
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
