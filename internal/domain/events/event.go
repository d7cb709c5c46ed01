package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TopicHabitEvents is the broker topic habit events are published on.
const TopicHabitEvents = "habits.events"

// Habit event types
const (
	HabitEventCreated     = "habit_created"
	HabitEventUpdated     = "habit_updated"
	HabitEventDeleted     = "habit_deleted"
	HabitEventLifecycle   = "habit_lifecycle"
	HabitEventCheckedIn   = "habit_checked_in"
	HabitEventUndone      = "habit_undone"
	HabitEventMilestone   = "streak_milestone"
	HabitEventStreakReset = "streak_broken"
)

// HabitEvent is emitted after a habit or its ledger changed
type HabitEvent struct {
	EventType string                 `json:"event_type"`
	UserID    uuid.UUID              `json:"user_id"`
	HabitID   uuid.UUID              `json:"habit_id"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Publisher fans habit events out to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event *HabitEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *HabitEvent) error { return nil }
