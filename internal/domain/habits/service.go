package habits

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Service interface {
	CreateHabit(ctx context.Context, input CreateHabitInput) (*Habit, error)
	GetHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error)
	ListHabits(ctx context.Context, filter HabitFilter) ([]Habit, int64, error)
	UpdateHabit(ctx context.Context, id, userID uuid.UUID, input UpdateHabitInput) (*Habit, error)
	ArchiveHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error)
	UnarchiveHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error)
	PauseHabit(ctx context.Context, id, userID uuid.UUID, until time.Time) (*Habit, error)
	ResumeHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error)
	DeleteHabit(ctx context.Context, id, userID uuid.UUID) error

	CheckIn(ctx context.Context, input CheckInInput) (*CheckInResult, error)
	Undo(ctx context.Context, habitID, userID uuid.UUID, date time.Time) (*UndoResult, error)
	History(ctx context.Context, habitID, userID uuid.UUID, q HistoryQuery) (iter.Seq2[CompletionRecord, error], error)

	ListMilestones(ctx context.Context, userID uuid.UUID, habitID *uuid.UUID) ([]Milestone, error)
	StreakHistory(ctx context.Context, id, userID uuid.UUID) ([]StreakRun, error)
	HabitsDueToday(ctx context.Context, userID uuid.UUID) ([]DueHabit, error)
	VerifyDerivedFields(ctx context.Context, id, userID uuid.UUID) (*Verification, error)
	RefreshStreaks(ctx context.Context, batchSize int) (RefreshReport, error)
	Activity(ctx context.Context, filter ActivityFilter) ([]Activity, error)
}

// DueHabit is a habit that still needs action today
type DueHabit struct {
	Habit          Habit `json:"habit"`
	CompletedToday bool  `json:"completed_today"`
	// Remaining is the number of qualifying completions the current period still needs.
	Remaining int `json:"remaining"`
}

// Verification compares the cached derived fields with a recompute from scratch.
type Verification struct {
	Cached     StreakSnapshot `json:"cached"`
	Recomputed StreakSnapshot `json:"recomputed"`
	Consistent bool           `json:"consistent"`
	Frozen     bool           `json:"frozen"`
}

type RefreshReport struct {
	Scanned   int `json:"scanned"`
	Refreshed int `json:"refreshed"`
	Broken    int `json:"broken"`
	Failed    int `json:"failed"`
}

type service struct {
	repos     Repositories
	ledger    *Ledger
	clock     Clock
	publisher events.Publisher
	logger    *zap.Logger
}

func NewService(repos Repositories, detector *Detector, clock Clock, publisher events.Publisher, logger *zap.Logger) Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repos:     repos,
		ledger:    NewLedger(repos, detector, clock, logger),
		clock:     clock,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *service) CreateHabit(ctx context.Context, input CreateHabitInput) (*Habit, error) {
	days, err := NewWeekdays(input.DaysOfWeek...)
	if err != nil {
		return nil, err
	}
	habit := &Habit{
		ID:           uuid.New(),
		UserID:       input.UserID,
		Title:        input.Title,
		Description:  input.Description,
		Category:     input.Category,
		Frequency:    input.Frequency,
		HabitType:    input.HabitType,
		TargetValue:  input.TargetValue,
		Unit:         input.Unit,
		DaysOfWeek:   days,
		TimesPerWeek: input.TimesPerWeek,
		IsActive:     true,
	}
	if err := ValidateHabit(habit); err != nil {
		return nil, err
	}

	if err := s.repos.Habits.Create(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	s.recordActivity(ctx, habit, ActionHabitCreated, map[string]interface{}{
		"title":     habit.Title,
		"frequency": habit.Frequency,
	})
	s.publish(ctx, habit, events.HabitEventCreated, nil)
	return habit, nil
}

func (s *service) GetHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error) {
	return s.ledger.ownedHabit(ctx, id, userID)
}

func (s *service) ListHabits(ctx context.Context, filter HabitFilter) ([]Habit, int64, error) {
	return s.repos.Habits.List(ctx, filter)
}

func (s *service) UpdateHabit(ctx context.Context, id, userID uuid.UUID, input UpdateHabitInput) (*Habit, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		habit.Title = *input.Title
	}
	if input.Description != nil {
		habit.Description = *input.Description
	}
	if input.Category != nil {
		habit.Category = *input.Category
	}
	if input.Frequency != nil {
		habit.Frequency = *input.Frequency
	}
	if input.HabitType != nil {
		habit.HabitType = *input.HabitType
	}
	if input.ClearTarget {
		habit.TargetValue = nil
	} else if input.TargetValue != nil {
		habit.TargetValue = input.TargetValue
	}
	if input.Unit != nil {
		habit.Unit = *input.Unit
	}
	if input.DaysOfWeek != nil {
		days, err := NewWeekdays(*input.DaysOfWeek...)
		if err != nil {
			return nil, err
		}
		habit.DaysOfWeek = days
	}
	if input.ClearQuota {
		habit.TimesPerWeek = nil
	} else if input.TimesPerWeek != nil {
		habit.TimesPerWeek = input.TimesPerWeek
	}

	if err := ValidateHabit(habit); err != nil {
		return nil, err
	}
	if err := s.repos.Habits.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to update habit: %w", err)
	}

	if input.schedulingChanged() {
		if _, _, err := s.ledger.Recompute(ctx, habit); err != nil {
			return nil, err
		}
	}

	s.recordActivity(ctx, habit, ActionHabitUpdated, map[string]interface{}{
		"title":              habit.Title,
		"scheduling_changed": input.schedulingChanged(),
	})
	s.publish(ctx, habit, events.HabitEventUpdated, nil)
	return habit, nil
}

// ArchiveHabit freezes the habit with its derived fields brought up to date first.
func (s *service) ArchiveHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if habit.IsArchived {
		return habit, nil
	}
	if _, _, err := s.ledger.Recompute(ctx, habit); err != nil {
		return nil, err
	}
	habit.IsArchived = true
	if err := s.repos.Habits.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to archive habit: %w", err)
	}

	s.recordActivity(ctx, habit, ActionHabitArchived, map[string]interface{}{
		"current_streak": habit.CurrentStreak,
	})
	s.publish(ctx, habit, events.HabitEventLifecycle, map[string]interface{}{"action": ActionHabitArchived})
	return habit, nil
}

func (s *service) UnarchiveHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !habit.IsArchived {
		return habit, nil
	}
	habit.IsArchived = false
	if err := s.repos.Habits.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to unarchive habit: %w", err)
	}
	if _, _, err := s.ledger.Recompute(ctx, habit); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, habit, ActionHabitUnarchived, nil)
	s.publish(ctx, habit, events.HabitEventLifecycle, map[string]interface{}{"action": ActionHabitUnarchived})
	return habit, nil
}

// PauseHabit opens a pause window from today through until. Pausing an already
// paused habit moves the end of the window.
func (s *service) PauseHabit(ctx context.Context, id, userID uuid.UUID, until time.Time) (*Habit, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	if until.IsZero() {
		return nil, invalid("paused_until", "is required")
	}
	until = Day(until)
	if until.Before(today) {
		return nil, invalid("paused_until", "cannot be in the past")
	}

	if !habit.IsPaused(today) {
		if _, _, err := s.ledger.Recompute(ctx, habit); err != nil {
			return nil, err
		}
		if habit.PausedAt != nil && habit.PausedUntil != nil {
			habit.PastPauses = append(habit.PastPauses, PauseWindow{From: Day(*habit.PausedAt), Until: Day(*habit.PausedUntil)})
		}
		habit.PausedAt = &today
	}
	habit.PausedUntil = &until
	if err := s.repos.Habits.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to pause habit: %w", err)
	}

	s.recordActivity(ctx, habit, ActionHabitPaused, map[string]interface{}{
		"paused_until": FormatDate(until),
	})
	s.publish(ctx, habit, events.HabitEventLifecycle, map[string]interface{}{"action": ActionHabitPaused})
	return habit, nil
}

// ResumeHabit closes the pause window at yesterday. Days already inside the
// window stay excused.
func (s *service) ResumeHabit(ctx context.Context, id, userID uuid.UUID) (*Habit, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	if !habit.IsPaused(today) {
		return habit, nil
	}

	yesterday := AddDays(today, -1)
	if habit.PausedAt != nil && Day(*habit.PausedAt).After(yesterday) {
		habit.PausedAt = nil
		habit.PausedUntil = nil
	} else {
		habit.PausedUntil = &yesterday
	}
	if err := s.repos.Habits.Update(ctx, habit); err != nil {
		return nil, fmt.Errorf("failed to resume habit: %w", err)
	}
	if _, _, err := s.ledger.Recompute(ctx, habit); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, habit, ActionHabitResumed, map[string]interface{}{
		"current_streak": habit.CurrentStreak,
	})
	s.publish(ctx, habit, events.HabitEventLifecycle, map[string]interface{}{"action": ActionHabitResumed})
	return habit, nil
}

func (s *service) DeleteHabit(ctx context.Context, id, userID uuid.UUID) error {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.repos.Habits.Delete(ctx, habit.ID); err != nil {
		return err
	}
	s.publish(ctx, habit, events.HabitEventDeleted, map[string]interface{}{"title": habit.Title})
	return nil
}

func (s *service) CheckIn(ctx context.Context, input CheckInInput) (*CheckInResult, error) {
	result, err := s.ledger.CheckIn(ctx, input)
	if err != nil {
		return nil, err
	}

	habit := &Habit{ID: input.HabitID, UserID: input.UserID}
	s.recordActivity(ctx, habit, ActionHabitCheckedIn, map[string]interface{}{
		"date":           FormatDate(result.Record.Date),
		"completed":      result.Record.Completed,
		"value":          result.Record.Value,
		"current_streak": result.Snapshot.CurrentStreak,
	})
	for _, m := range result.Milestones {
		s.recordActivity(ctx, habit, ActionStreakMilestone, map[string]interface{}{
			"milestone": fmt.Sprintf("%d-occurrence streak", m.Value),
			"value":     m.Value,
		})
		s.publish(ctx, habit, events.HabitEventMilestone, map[string]interface{}{"value": m.Value})
	}
	s.publish(ctx, habit, events.HabitEventCheckedIn, map[string]interface{}{
		"date":           FormatDate(result.Record.Date),
		"current_streak": result.Snapshot.CurrentStreak,
	})
	return result, nil
}

func (s *service) Undo(ctx context.Context, habitID, userID uuid.UUID, date time.Time) (*UndoResult, error) {
	result, err := s.ledger.Undo(ctx, habitID, userID, date)
	if err != nil {
		return nil, err
	}
	if !result.Removed {
		return result, nil
	}

	habit := &Habit{ID: habitID, UserID: userID}
	s.recordActivity(ctx, habit, ActionHabitUndone, map[string]interface{}{
		"date":            FormatDate(date),
		"previous_streak": result.Previous,
		"current_streak":  result.Snapshot.CurrentStreak,
	})
	s.publish(ctx, habit, events.HabitEventUndone, map[string]interface{}{"date": FormatDate(date)})
	return result, nil
}

func (s *service) History(ctx context.Context, habitID, userID uuid.UUID, q HistoryQuery) (iter.Seq2[CompletionRecord, error], error) {
	if q.Limit < 0 {
		return nil, invalid("limit", "must not be negative")
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, invalid("from", "must not be after to")
	}
	if _, err := s.ledger.ownedHabit(ctx, habitID, userID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, habitID, q), nil
}

func (s *service) ListMilestones(ctx context.Context, userID uuid.UUID, habitID *uuid.UUID) ([]Milestone, error) {
	if habitID != nil {
		if _, err := s.ledger.ownedHabit(ctx, *habitID, userID); err != nil {
			return nil, err
		}
	}
	return s.repos.Milestones.List(ctx, userID, habitID)
}

func (s *service) StreakHistory(ctx context.Context, id, userID uuid.UUID) ([]StreakRun, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repos.Ledger.Query(ctx, habit.ID, DateRange{})
	if err != nil {
		return nil, err
	}
	return StreakRuns(habit, records, s.clock.Today()), nil
}

func (s *service) HabitsDueToday(ctx context.Context, userID uuid.UUID) ([]DueHabit, error) {
	habits, _, err := s.repos.Habits.List(ctx, HabitFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	due := make([]DueHabit, 0, len(habits))
	for i := range habits {
		h := &habits[i]
		if !h.Tracked() || h.IsPaused(today) || !IsDue(h, today) {
			continue
		}
		start, _, target := periodOf(h, today)
		records, err := s.repos.Ledger.Query(ctx, h.ID, DateRange{From: &start, To: &today})
		if err != nil {
			return nil, err
		}
		qualifying := QualifyingDates(h, records)
		if !DueOn(h, today, qualifying) {
			continue
		}

		item := DueHabit{Habit: *h, Remaining: target}
		for _, d := range qualifying {
			if !IsDue(h, d) {
				continue
			}
			if d.Equal(today) {
				item.CompletedToday = true
			}
			item.Remaining--
		}
		if item.Remaining < 0 {
			item.Remaining = 0
		}
		due = append(due, item)
	}
	return due, nil
}

func (s *service) VerifyDerivedFields(ctx context.Context, id, userID uuid.UUID) (*Verification, error) {
	habit, err := s.ledger.ownedHabit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.repos.Ledger.Query(ctx, habit.ID, DateRange{})
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	cached := habit.Snapshot()
	recomputed := Recompute(habit, records, today)
	recomputed.Version = habit.LedgerVersion
	return &Verification{
		Cached:     cached,
		Recomputed: recomputed,
		Consistent: cached.Equal(recomputed),
		Frozen:     habit.Frozen(today),
	}, nil
}

// RefreshStreaks recomputes every tracked habit whose derived fields were not
// computed today. Habits whose streak drops to zero are reported as broken.
func (s *service) RefreshStreaks(ctx context.Context, batchSize int) (RefreshReport, error) {
	var report RefreshReport
	if batchSize <= 0 {
		batchSize = 200
	}
	today := s.clock.Today()

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		habits, _, err := s.repos.Habits.List(ctx, HabitFilter{Page: page, PageSize: batchSize})
		if err != nil {
			return report, fmt.Errorf("failed to list habits: %w", err)
		}

		for i := range habits {
			h := &habits[i]
			report.Scanned++
			if h.Frozen(today) {
				continue
			}
			if h.StreakComputedOn != nil && Day(*h.StreakComputedOn).Equal(today) {
				continue
			}

			previous := h.CurrentStreak
			snap, _, err := s.ledger.Recompute(ctx, h)
			if err != nil {
				report.Failed++
				s.logger.Error("Failed to refresh streak",
					zap.String("habit_id", h.ID.String()),
					zap.Error(err))
				continue
			}
			report.Refreshed++

			if previous > 0 && snap.CurrentStreak == 0 {
				report.Broken++
				s.recordActivity(ctx, h, ActionStreakBroken, map[string]interface{}{
					"broken_streak":  previous,
					"last_completed": formatOptional(snap.LastCompletedAt),
				})
				s.publish(ctx, h, events.HabitEventStreakReset, map[string]interface{}{"broken_streak": previous})
			}
		}

		if len(habits) < batchSize {
			return report, nil
		}
	}
}

func (s *service) Activity(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	if filter.HabitID != nil {
		if _, err := s.ledger.ownedHabit(ctx, *filter.HabitID, filter.UserID); err != nil {
			return nil, err
		}
	}
	return s.repos.Activity.List(ctx, filter)
}

// recordActivity appends to the activity log. Failures only get logged.
func (s *service) recordActivity(ctx context.Context, habit *Habit, action string, metadata map[string]interface{}) {
	entry := &Activity{
		HabitID:   habit.ID,
		UserID:    habit.UserID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.logger.Warn("Failed to encode activity metadata", zap.String("action", action), zap.Error(err))
		} else {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err := s.repos.Activity.Record(ctx, entry); err != nil {
		s.logger.Error("Failed to record habit activity",
			zap.String("habit_id", habit.ID.String()),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *service) publish(ctx context.Context, habit *Habit, eventType string, details map[string]interface{}) {
	event := &events.HabitEvent{
		EventType: eventType,
		UserID:    habit.UserID,
		HabitID:   habit.ID,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish habit event",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDate(*t)
}
