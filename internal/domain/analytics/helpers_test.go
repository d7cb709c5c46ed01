package analytics

import (
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/google/uuid"
)

// today is a Wednesday.
var today = time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return habits.AddDays(today, offset)
}

func ptr[T any](v T) *T {
	return &v
}

func newHabit(title, category string) habits.Habit {
	return habits.Habit{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Title:     title,
		Category:  category,
		Frequency: habits.FrequencyDaily,
		HabitType: habits.HabitTypeBoolean,
		IsActive:  true,
		CreatedAt: day(-120),
	}
}

func newDataset() *Dataset {
	return &Dataset{Today: today, Records: make(map[uuid.UUID][]habits.CompletionRecord)}
}

// add appends h with completed records on the given day offsets.
func (ds *Dataset) add(h habits.Habit, offsets ...int) habits.Habit {
	ds.Habits = append(ds.Habits, h)
	for _, o := range offsets {
		ds.Records[h.ID] = append(ds.Records[h.ID], habits.CompletionRecord{
			HabitID:   h.ID,
			UserID:    h.UserID,
			Date:      day(o),
			Completed: true,
		})
	}
	return h
}

// span returns the offsets from..to inclusive, skipping any listed in except.
func span(from, to int, except ...int) []int {
	skip := make(map[int]bool, len(except))
	for _, e := range except {
		skip[e] = true
	}
	var out []int
	for o := from; o <= to; o++ {
		if !skip[o] {
			out = append(out, o)
		}
	}
	return out
}
