package habits

import (
	"math"
	"strings"
	"time"
)

const (
	maxTitleLength = 255
	maxNotesLength = 1000
)

// ValidateHabit checks a habit's configuration before it is stored.
func ValidateHabit(h *Habit) error {
	if strings.TrimSpace(h.Title) == "" {
		return invalid("title", "is required")
	}
	if len(h.Title) > maxTitleLength {
		return invalid("title", "is too long")
	}
	if !h.Frequency.Valid() {
		return invalid("frequency", "must be one of DAILY, WEEKLY, MONTHLY")
	}
	if !h.HabitType.Valid() {
		return invalid("habit_type", "must be one of BOOLEAN, NUMERIC, DURATION")
	}

	if h.HabitType.Measured() {
		if h.TargetValue == nil || !isFinite(*h.TargetValue) || *h.TargetValue <= 0 {
			return invalid("target_value", "must be a positive number for NUMERIC and DURATION habits")
		}
		if strings.TrimSpace(h.Unit) == "" {
			return invalid("unit", "is required for NUMERIC and DURATION habits")
		}
	} else if h.TargetValue != nil {
		return invalid("target_value", "is not allowed for BOOLEAN habits")
	}

	if h.TimesPerWeek != nil && (*h.TimesPerWeek < 1 || *h.TimesPerWeek > 7) {
		return invalid("times_per_week", "must be between 1 and 7")
	}

	if h.Frequency == FrequencyWeekly && h.DaysOfWeek.Empty() && h.TimesPerWeek == nil {
		return invalid("days_of_week", "WEEKLY habits need days_of_week or times_per_week")
	}
	return nil
}

func validateCheckIn(h *Habit, in CheckInInput, today time.Time) error {
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	if Day(in.Date).After(Day(today)) {
		return invalid("date", "cannot be in the future")
	}
	if len(in.Notes) > maxNotesLength {
		return invalid("notes", "is too long")
	}
	if in.Value != nil {
		if !isFinite(*in.Value) {
			return invalid("value", "must be a finite number")
		}
		if *in.Value < 0 {
			return invalid("value", "must not be negative")
		}
		if !h.HabitType.Measured() {
			return invalid("value", "is not allowed for BOOLEAN habits")
		}
	}
	if h.HabitType.Measured() && in.Completed && in.Value == nil {
		return invalid("value", "is required to complete a NUMERIC or DURATION habit")
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
