package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind is the closed set of interaction types the behavior log accepts.
type ActionKind string

const (
	ActionViewed    ActionKind = "viewed"
	ActionCompleted ActionKind = "completed"
	ActionSkipped   ActionKind = "skipped"
	ActionRated     ActionKind = "rated"
	ActionLiked     ActionKind = "liked"
	ActionShared    ActionKind = "shared"
)

func (k ActionKind) Valid() bool {
	switch k {
	case ActionViewed, ActionCompleted, ActionSkipped, ActionRated, ActionLiked, ActionShared:
		return true
	}
	return false
}

// EventContext carries free-form situational data attached to an event. It is
// serialized as a JSON side column and decoded defensively at read time.
type EventContext struct {
	TimeOfDay         string `json:"time_of_day,omitempty"`
	DayOfWeek         string `json:"day_of_week,omitempty"`
	Device            string `json:"device,omitempty"`
	Location          string `json:"location,omitempty"`
	ExperimentName    string `json:"experiment_name,omitempty"`
	ExperimentVariant string `json:"experiment_variant,omitempty"`
}

// BehaviorEvent is one recorded user interaction with a piece of content.
// Rows are immutable once written; only retention cleanup removes them.
type BehaviorEvent struct {
	ID                   uuid.UUID     `json:"id"`
	UserID               uuid.UUID     `json:"user_id"`
	ContentID            int64         `json:"content_id"`
	Action               ActionKind    `json:"action"`
	SessionDuration      *int          `json:"session_duration,omitempty"` // seconds
	Rating               *float64      `json:"rating,omitempty"`
	CompletionPercentage *float64      `json:"completion_percentage,omitempty"`
	SkipReason           *string       `json:"skip_reason,omitempty"`
	Context              *EventContext `json:"context,omitempty"`
	Timestamp            time.Time     `json:"timestamp"`
}

type BehaviorEventRequest struct {
	UserID               uuid.UUID     `json:"user_id" validate:"required"`
	ContentID            int64         `json:"content_id" validate:"required"`
	Action               ActionKind    `json:"action" validate:"required,oneof=viewed completed skipped rated liked shared"`
	SessionDuration      *int          `json:"session_duration,omitempty" validate:"omitempty,min=0"`
	Rating               *float64      `json:"rating,omitempty" validate:"omitempty,min=0,max=10"`
	CompletionPercentage *float64      `json:"completion_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	SkipReason           *string       `json:"skip_reason,omitempty"`
	Context              *EventContext `json:"context,omitempty"`
}

// UserBehaviorAnalytics is the per-user aggregate derived from the raw log.
// The zero value is the documented fallback when the store is unavailable.
type UserBehaviorAnalytics struct {
	UserID             uuid.UUID          `json:"user_id"`
	TotalViews         int                `json:"total_views"`
	ActionCounts       map[ActionKind]int `json:"action_counts"`
	AvgSessionDuration float64            `json:"avg_session_duration"`
	AvgRating          float64            `json:"avg_rating"`
	CompletionRate     float64            `json:"completion_rate"`
	FavoriteGenres     []string           `json:"favorite_genres"`
	PreferredTimeSlots []string           `json:"preferred_time_slots"`
	LastActive         *time.Time         `json:"last_active,omitempty"`
}

// ExperimentVariantResult carries raw counts for one A/B variant. No
// significance testing is applied; that is the caller's concern.
type ExperimentVariantResult struct {
	Variant     string `json:"variant"`
	Conversions int    `json:"conversions"`
	Views       int    `json:"views"`
}
