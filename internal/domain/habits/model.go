package habits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

type HabitType string

const (
	HabitTypeBoolean  HabitType = "BOOLEAN"
	HabitTypeNumeric  HabitType = "NUMERIC"
	HabitTypeDuration HabitType = "DURATION"
)

func (t HabitType) Valid() bool {
	switch t {
	case HabitTypeBoolean, HabitTypeNumeric, HabitTypeDuration:
		return true
	}
	return false
}

// Measured reports whether completion is judged by value against a target.
func (t HabitType) Measured() bool {
	return t == HabitTypeNumeric || t == HabitTypeDuration
}

// Granularity is the unit a habit's streak is counted in.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

type Habit struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Title        string     `gorm:"size:255;not null"`
	Description  string     `gorm:"type:text"`
	Category     string     `gorm:"size:100;index"`
	Frequency    Frequency  `gorm:"size:16;not null"`
	HabitType    HabitType  `gorm:"size:16;not null"`
	TargetValue  *float64   `gorm:"default:null"`
	Unit         string     `gorm:"size:32"`
	DaysOfWeek   Weekdays   `gorm:"not null;default:0"`
	TimesPerWeek *int       `gorm:"default:null"`
	IsActive     bool       `gorm:"not null"`
	IsArchived   bool       `gorm:"not null;default:false"`
	PausedAt     *time.Time `gorm:"type:date;default:null"`
	PausedUntil  *time.Time `gorm:"type:date;default:null"`
	// Closed windows of earlier pauses; their days stay excused
	PastPauses datatypes.JSONSlice[PauseWindow] `gorm:"not null;default:'[]'"`

	// Derived from the ledger, written only through HabitStore.UpdateDerivedFields
	CurrentStreak    int        `gorm:"default:0;not null"`
	LongestStreak    int        `gorm:"default:0;not null"`
	TotalCompletions int        `gorm:"default:0;not null"`
	LastCompletedAt  *time.Time `gorm:"type:date;default:null"`
	StreakStartDate  *time.Time `gorm:"type:date;default:null"`
	StreakComputedOn *time.Time `gorm:"type:date;default:null"`
	LedgerVersion    int64      `gorm:"default:0;not null"`
	DerivedVersion   int64      `gorm:"default:0;not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for the Habit model
func (Habit) TableName() string {
	return "habits"
}

// BeforeCreate is called before creating a new habit record
func (h *Habit) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	now := time.Now().UTC()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = now
	}
	h.UpdatedAt = now
	return nil
}

// BeforeUpdate is called before updating a habit record
func (h *Habit) BeforeUpdate(tx *gorm.DB) error {
	h.UpdatedAt = time.Now().UTC()
	return nil
}

// IsPaused reports whether today falls inside an open pause window.
func (h *Habit) IsPaused(today time.Time) bool {
	return h.PausedUntil != nil && !Day(today).After(Day(*h.PausedUntil))
}

// PauseWindow is an inclusive range of paused days.
type PauseWindow struct {
	From  time.Time `json:"from"`
	Until time.Time `json:"until"`
}

func (w PauseWindow) Contains(date time.Time) bool {
	d := Day(date)
	return !d.Before(Day(w.From)) && !d.After(Day(w.Until))
}

// InPauseWindow reports whether date lies in the current pause window or any earlier one.
func (h *Habit) InPauseWindow(date time.Time) bool {
	if h.PausedAt != nil && h.PausedUntil != nil {
		if (PauseWindow{From: *h.PausedAt, Until: *h.PausedUntil}).Contains(date) {
			return true
		}
	}
	for _, w := range h.PastPauses {
		if w.Contains(date) {
			return true
		}
	}
	return false
}

// Frozen habits keep their derived fields untouched until resumed or unarchived.
func (h *Habit) Frozen(today time.Time) bool {
	return h.IsArchived || h.IsPaused(today)
}

// Tracked reports whether a habit takes part in due lists and analytics.
func (h *Habit) Tracked() bool {
	return h.IsActive && !h.IsArchived
}

// weekQuota returns the weekly completion target when the habit runs in quota mode.
func (h *Habit) weekQuota() (int, bool) {
	if h.Frequency != FrequencyWeekly || h.TimesPerWeek == nil {
		return 0, false
	}
	if h.DaysOfWeek.Empty() || h.DaysOfWeek.Len() > *h.TimesPerWeek {
		return *h.TimesPerWeek, true
	}
	return 0, false
}

func (h *Habit) Granularity() Granularity {
	switch {
	case h.Frequency == FrequencyMonthly:
		return GranularityMonth
	case h.Frequency == FrequencyWeekly:
		if _, ok := h.weekQuota(); ok {
			return GranularityWeek
		}
	}
	return GranularityDay
}

// PeriodDays approximates the length of one streak unit in days.
func (h *Habit) PeriodDays() int {
	switch h.Granularity() {
	case GranularityWeek:
		return 7
	case GranularityMonth:
		return 30
	}
	return 1
}

// Snapshot returns the cached derived fields.
func (h *Habit) Snapshot() StreakSnapshot {
	snap := StreakSnapshot{
		CurrentStreak:    h.CurrentStreak,
		LongestStreak:    h.LongestStreak,
		TotalCompletions: h.TotalCompletions,
		LastCompletedAt:  h.LastCompletedAt,
		StreakStartDate:  h.StreakStartDate,
		Version:          h.DerivedVersion,
	}
	if h.StreakComputedOn != nil {
		snap.ComputedOn = *h.StreakComputedOn
	}
	return snap
}

func (h *Habit) applySnapshot(s StreakSnapshot) {
	h.CurrentStreak = s.CurrentStreak
	h.LongestStreak = s.LongestStreak
	h.TotalCompletions = s.TotalCompletions
	h.LastCompletedAt = s.LastCompletedAt
	h.StreakStartDate = s.StreakStartDate
	computed := s.ComputedOn
	h.StreakComputedOn = &computed
	h.DerivedVersion = s.Version
}

// CompletionRecord is one ledger entry, unique per habit and day.
type CompletionRecord struct {
	HabitID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Date      time.Time `gorm:"type:date;primaryKey;index:idx_completion_user_date,priority:2"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_completion_user_date,priority:1"`
	Completed bool      `gorm:"not null;default:false"`
	Value     *float64  `gorm:"default:null"`
	Notes     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for the CompletionRecord model
func (CompletionRecord) TableName() string {
	return "habit_completions"
}

// StreakSnapshot holds the derived streak fields of one habit.
type StreakSnapshot struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	TotalCompletions int        `json:"total_completions"`
	LastCompletedAt  *time.Time `json:"last_completed_at"`
	StreakStartDate  *time.Time `json:"streak_start_date"`
	ComputedOn       time.Time  `json:"computed_on"`
	// Version is the ledger version the snapshot was computed from.
	Version int64 `json:"-"`
}

// Equal compares the derived values, ignoring bookkeeping.
func (s StreakSnapshot) Equal(o StreakSnapshot) bool {
	return s.CurrentStreak == o.CurrentStreak &&
		s.LongestStreak == o.LongestStreak &&
		s.TotalCompletions == o.TotalCompletions &&
		sameDay(s.LastCompletedAt, o.LastCompletedAt) &&
		sameDay(s.StreakStartDate, o.StreakStartDate)
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Day(*a).Equal(Day(*b))
}

type MilestoneType string

const MilestoneStreak MilestoneType = "STREAK"

// Milestone is a permanent record that a streak threshold was reached.
type Milestone struct {
	ID         uuid.UUID     `gorm:"type:uuid;primary_key"`
	HabitID    uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_milestone_unique,priority:1"`
	UserID     uuid.UUID     `gorm:"type:uuid;not null;index"`
	Type       MilestoneType `gorm:"size:16;not null;uniqueIndex:idx_milestone_unique,priority:2"`
	Value      int           `gorm:"not null;uniqueIndex:idx_milestone_unique,priority:3"`
	AchievedAt time.Time     `gorm:"not null"`
}

// TableName specifies the table name for the Milestone model
func (Milestone) TableName() string {
	return "habit_milestones"
}

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// CreateHabitInput represents the input for creating a new habit
type CreateHabitInput struct {
	UserID       uuid.UUID
	Title        string
	Description  string
	Category     string
	Frequency    Frequency
	HabitType    HabitType
	TargetValue  *float64
	Unit         string
	DaysOfWeek   []int
	TimesPerWeek *int
}

// UpdateHabitInput represents the input for updating a habit. Nil fields are left alone.
type UpdateHabitInput struct {
	Title        *string
	Description  *string
	Category     *string
	Frequency    *Frequency
	HabitType    *HabitType
	TargetValue  *float64
	Unit         *string
	DaysOfWeek   *[]int
	TimesPerWeek *int
	ClearTarget  bool
	ClearQuota   bool
}

// schedulingChanged reports whether the update touches anything streaks depend on.
func (in UpdateHabitInput) schedulingChanged() bool {
	return in.Frequency != nil || in.HabitType != nil || in.TargetValue != nil ||
		in.DaysOfWeek != nil || in.TimesPerWeek != nil || in.ClearTarget || in.ClearQuota
}

// HabitFilter defines the filtering options for habits
type HabitFilter struct {
	UserID          *uuid.UUID
	Category        *string
	IncludeArchived bool
	Page            int
	PageSize        int
}

// DateRange is inclusive on both ends; nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// HistoryQuery bounds a newest-first walk over a habit's ledger.
type HistoryQuery struct {
	From  *time.Time
	To    *time.Time
	Limit int
}
