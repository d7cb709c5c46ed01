package habits

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity is an append-only log entry of something that happened to a habit
type Activity struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	HabitID   uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Action    string         `gorm:"type:varchar(50);not null"`
	Timestamp time.Time      `gorm:"not null;index"`
	Metadata  datatypes.JSON `gorm:"default:null"`
}

// TableName specifies the table name for the Activity model
func (Activity) TableName() string {
	return "habit_activity"
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}

// ActivityFilter defines filtering options for the activity log
type ActivityFilter struct {
	UserID  uuid.UUID
	HabitID *uuid.UUID
	Action  *string
	Since   *time.Time
	Limit   int
}

// Common activity actions
const (
	ActionHabitCreated    = "habit_created"
	ActionHabitUpdated    = "habit_updated"
	ActionHabitDeleted    = "habit_deleted"
	ActionHabitArchived   = "habit_archived"
	ActionHabitUnarchived = "habit_unarchived"
	ActionHabitPaused     = "habit_paused"
	ActionHabitResumed    = "habit_resumed"
	ActionHabitCheckedIn  = "habit_checked_in"
	ActionHabitUndone     = "habit_undone"
	ActionStreakMilestone = "streak_milestone"
	ActionStreakBroken    = "streak_broken"
)
