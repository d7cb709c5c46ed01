package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateHabitRequest represents the request to create a new habit
type CreateHabitRequest struct {
	Title        string   `json:"title" validate:"required,not_empty,max=255"`
	Description  string   `json:"description"`
	Category     string   `json:"category" validate:"max=100"`
	Frequency    string   `json:"frequency" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY"`
	HabitType    string   `json:"habit_type" validate:"omitempty,oneof=BOOLEAN NUMERIC DURATION"`
	TargetValue  *float64 `json:"target_value,omitempty"`
	Unit         string   `json:"unit" validate:"max=32"`
	DaysOfWeek   []int    `json:"days_of_week,omitempty" validate:"omitempty,max=7,dive,min=1,max=7"`
	TimesPerWeek *int     `json:"times_per_week,omitempty" validate:"omitempty,min=1,max=7"`
}

// UpdateHabitRequest represents the request to update an existing habit
type UpdateHabitRequest struct {
	Title        *string  `json:"title,omitempty" validate:"omitempty,not_empty,max=255"`
	Description  *string  `json:"description,omitempty"`
	Category     *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Frequency    *string  `json:"frequency,omitempty" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY"`
	HabitType    *string  `json:"habit_type,omitempty" validate:"omitempty,oneof=BOOLEAN NUMERIC DURATION"`
	TargetValue  *float64 `json:"target_value,omitempty"`
	Unit         *string  `json:"unit,omitempty" validate:"omitempty,max=32"`
	DaysOfWeek   *[]int   `json:"days_of_week,omitempty" validate:"omitempty,max=7,dive,min=1,max=7"`
	TimesPerWeek *int     `json:"times_per_week,omitempty" validate:"omitempty,min=1,max=7"`
	ClearTarget  bool     `json:"clear_target,omitempty"`
	ClearQuota   bool     `json:"clear_times_per_week,omitempty"`
}

// PauseHabitRequest pauses a habit through an inclusive end date
type PauseHabitRequest struct {
	Until string `json:"until" validate:"required,iso_date"`
}

// CheckInRequest records a completion for one day. An empty date means today.
type CheckInRequest struct {
	Date      string   `json:"date,omitempty" validate:"omitempty,iso_date"`
	Completed *bool    `json:"completed,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Notes     string   `json:"notes,omitempty" validate:"max=1000"`
}

// HabitResponse represents a habit in API responses
type HabitResponse struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Frequency        string    `json:"frequency"`
	HabitType        string    `json:"habit_type"`
	TargetValue      *float64  `json:"target_value,omitempty"`
	Unit             string    `json:"unit,omitempty"`
	DaysOfWeek       []int     `json:"days_of_week"`
	TimesPerWeek     *int      `json:"times_per_week,omitempty"`
	Granularity      string    `json:"granularity"`
	IsActive         bool      `json:"is_active"`
	IsArchived       bool      `json:"is_archived"`
	IsPaused         bool      `json:"is_paused"`
	PausedUntil      *string   `json:"paused_until,omitempty"`
	CurrentStreak    int       `json:"current_streak"`
	LongestStreak    int       `json:"longest_streak"`
	TotalCompletions int       `json:"total_completions"`
	LastCompletedAt  *string   `json:"last_completed_at,omitempty"`
	StreakStartDate  *string   `json:"streak_start_date,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HabitListResponse represents a paginated list of habits
type HabitListResponse struct {
	Habits     []*HabitResponse `json:"habits"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
}

// CompletionResponse is one ledger entry
type CompletionResponse struct {
	HabitID   uuid.UUID `json:"habit_id"`
	Date      string    `json:"date"`
	Completed bool      `json:"completed"`
	Value     *float64  `json:"value,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StreakResponse carries the derived streak fields after a ledger change
type StreakResponse struct {
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	TotalCompletions int     `json:"total_completions"`
	LastCompletedAt  *string `json:"last_completed_at,omitempty"`
	StreakStartDate  *string `json:"streak_start_date,omitempty"`
}

// MilestoneResponse is an earned streak milestone
type MilestoneResponse struct {
	ID         uuid.UUID `json:"id"`
	HabitID    uuid.UUID `json:"habit_id"`
	Type       string    `json:"type"`
	Value      int       `json:"value"`
	AchievedAt time.Time `json:"achieved_at"`
}

type CheckInResponse struct {
	Record     *CompletionResponse  `json:"record"`
	Streak     StreakResponse       `json:"streak"`
	Milestones []*MilestoneResponse `json:"milestones"`
	Frozen     bool                 `json:"frozen"`
}

type UndoResponse struct {
	Removed bool           `json:"removed"`
	Streak  StreakResponse `json:"streak"`
	Frozen  bool           `json:"frozen"`
}

// StreakRunResponse is one maximal run of satisfied occurrences
type StreakRunResponse struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Length  int    `json:"length"`
	Current bool   `json:"current"`
}

// DueHabitResponse is a habit that still needs action today
type DueHabitResponse struct {
	Habit          *HabitResponse `json:"habit"`
	CompletedToday bool           `json:"completed_today"`
	Remaining      int            `json:"remaining"`
}

// ActivityResponse is one activity log entry
type ActivityResponse struct {
	ID        uuid.UUID              `json:"id"`
	HabitID   uuid.UUID              `json:"habit_id"`
	Action    string                 `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// VerificationResponse compares cached and recomputed streak fields
type VerificationResponse struct {
	Cached     StreakResponse `json:"cached"`
	Recomputed StreakResponse `json:"recomputed"`
	Consistent bool           `json:"consistent"`
	Frozen     bool           `json:"frozen"`
}
