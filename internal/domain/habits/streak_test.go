package habits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecompute(t *testing.T) {
	tests := []struct {
		name      string
		offsets   []int
		current   int
		longest   int
		total     int
		startDate *int
	}{
		{
			name: "No check-ins yields zeros",
		},
		{
			name:      "Three consecutive days ending today",
			offsets:   []int{0, -1, -2},
			current:   3,
			longest:   3,
			total:     3,
			startDate: ptr(-2),
		},
		{
			name:      "Today not checked in yet keeps the streak",
			offsets:   []int{-1, -2, -3},
			current:   3,
			longest:   3,
			total:     3,
			startDate: ptr(-3),
		},
		{
			name:      "Gap stops the current streak",
			offsets:   []int{-3, -1},
			current:   1,
			longest:   1,
			total:     2,
			startDate: ptr(-1),
		},
		{
			name:    "Missed yesterday breaks the streak",
			offsets: []int{-2, -3, -4},
			current: 0,
			longest: 3,
			total:   3,
		},
		{
			name:      "Older run is longer than the current one",
			offsets:   []int{-20, -19, -18, -17, -16, -2, -1, 0},
			current:   3,
			longest:   5,
			total:     8,
			startDate: ptr(-2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := dailyHabit()
			snap := Recompute(h, completions(h, tt.offsets...), today)

			assert.Equal(t, tt.current, snap.CurrentStreak)
			assert.Equal(t, tt.longest, snap.LongestStreak)
			assert.Equal(t, tt.total, snap.TotalCompletions)
			assert.Equal(t, today, snap.ComputedOn)
			if tt.total == 0 {
				assert.Nil(t, snap.LastCompletedAt)
			}
			if tt.startDate == nil {
				assert.Nil(t, snap.StreakStartDate)
			} else {
				require.NotNil(t, snap.StreakStartDate)
				assert.Equal(t, day(*tt.startDate), *snap.StreakStartDate)
			}
		})
	}
}

func TestRecomputeIgnoresUncompletedRecords(t *testing.T) {
	h := dailyHabit()
	records := completions(h, -1, 0)
	records = append(records, CompletionRecord{HabitID: h.ID, Date: day(-2), Completed: false})

	snap := Recompute(h, records, today)
	assert.Equal(t, 2, snap.CurrentStreak)
	assert.Equal(t, 2, snap.TotalCompletions)
	require.NotNil(t, snap.LastCompletedAt)
	assert.Equal(t, today, *snap.LastCompletedAt)
}

func TestRecomputeMeasuredHabitUsesTarget(t *testing.T) {
	h := dailyHabit()
	h.HabitType = HabitTypeNumeric
	h.TargetValue = ptr(8.0)
	h.Unit = "glasses"

	below := []CompletionRecord{{HabitID: h.ID, Date: today, Completed: true, Value: ptr(5.0)}}
	snap := Recompute(h, below, today)
	assert.Equal(t, 0, snap.CurrentStreak)
	assert.Equal(t, 0, snap.TotalCompletions)
	assert.Nil(t, snap.LastCompletedAt)

	// the flag is ignored in both directions
	reached := []CompletionRecord{{HabitID: h.ID, Date: today, Completed: false, Value: ptr(8.0)}}
	snap = Recompute(h, reached, today)
	assert.Equal(t, 1, snap.CurrentStreak)
	assert.Equal(t, 1, snap.TotalCompletions)
}

func TestRecomputeFixedWeekdays(t *testing.T) {
	h := dailyHabit()
	h.Frequency = FrequencyWeekly
	h.DaysOfWeek, _ = NewWeekdays(1, 3, 5)

	// Wed 13, Fri 15, Mon 18; today (Wed 20) is still open
	records := onDates(h, date(2024, 3, 13), date(2024, 3, 15), date(2024, 3, 18))
	snap := Recompute(h, records, today)
	assert.Equal(t, 3, snap.CurrentStreak)
	assert.Equal(t, 3, snap.LongestStreak)

	// missing Fri 15 breaks it
	records = onDates(h, date(2024, 3, 13), date(2024, 3, 18))
	snap = Recompute(h, records, today)
	assert.Equal(t, 1, snap.CurrentStreak)
	assert.Equal(t, 1, snap.LongestStreak)
}

func TestRecomputeWeeklyQuotaCountsWeeks(t *testing.T) {
	h := dailyHabit()
	h.Frequency = FrequencyWeekly
	h.TimesPerWeek = ptr(3)

	records := onDates(h,
		date(2024, 3, 4), date(2024, 3, 5), date(2024, 3, 6),
		date(2024, 3, 11), date(2024, 3, 13), date(2024, 3, 14),
		date(2024, 3, 18),
	)
	snap := Recompute(h, records, today)
	assert.Equal(t, GranularityWeek, h.Granularity())
	assert.Equal(t, 2, snap.CurrentStreak, "the current week is still open")
	assert.Equal(t, 2, snap.LongestStreak)
	assert.Equal(t, 7, snap.TotalCompletions)

	// a short week ends the streak
	records = onDates(h,
		date(2024, 2, 26), date(2024, 2, 27), date(2024, 2, 28),
		date(2024, 3, 4), date(2024, 3, 5),
		date(2024, 3, 11), date(2024, 3, 12), date(2024, 3, 13),
	)
	snap = Recompute(h, records, today)
	assert.Equal(t, 1, snap.CurrentStreak)
	assert.Equal(t, 1, snap.LongestStreak)
}

func TestRecomputeMonthly(t *testing.T) {
	h := dailyHabit()
	h.Frequency = FrequencyMonthly

	records := onDates(h, date(2024, 1, 5), date(2024, 1, 6), date(2024, 2, 10), date(2024, 3, 1))
	snap := Recompute(h, records, today)
	assert.Equal(t, 3, snap.CurrentStreak)
	assert.Equal(t, 3, snap.LongestStreak)
	assert.Equal(t, 4, snap.TotalCompletions)

	records = onDates(h, date(2023, 12, 5), date(2024, 2, 10))
	snap = Recompute(h, records, today)
	assert.Equal(t, 1, snap.CurrentStreak, "March is open, January was missed")
}

func TestRecomputePauseWindowDoesNotBreak(t *testing.T) {
	h := dailyHabit()
	h.PausedAt = ptr(day(-5))
	h.PausedUntil = ptr(day(-3))

	snap := Recompute(h, completions(h, -7, -6, -2, -1), today)
	assert.Equal(t, 4, snap.CurrentStreak)
	assert.Equal(t, 4, snap.LongestStreak)

	h.PausedAt, h.PausedUntil = nil, nil
	snap = Recompute(h, completions(h, -7, -6, -2, -1), today)
	assert.Equal(t, 2, snap.CurrentStreak)
}

func TestRecomputeEarlierPauseWindowsStayExcused(t *testing.T) {
	h := dailyHabit()
	h.PastPauses = append(h.PastPauses, PauseWindow{From: day(-10), Until: day(-6)})
	h.PausedAt = ptr(day(-3))
	h.PausedUntil = ptr(day(-2))

	records := completions(h, -15, -14, -13, -12, -11, -5, -4, -1, 0)
	snap := Recompute(h, records, today)
	assert.Equal(t, 9, snap.CurrentStreak)
	assert.Equal(t, 9, snap.LongestStreak)

	h.PastPauses = nil
	snap = Recompute(h, records, today)
	assert.Equal(t, 4, snap.CurrentStreak)
}

func TestRecomputeCurrentNeverExceedsLongest(t *testing.T) {
	frequencies := []func(h *Habit){
		func(h *Habit) {},
		func(h *Habit) {
			h.Frequency = FrequencyWeekly
			h.DaysOfWeek, _ = NewWeekdays(2, 4, 6)
		},
		func(h *Habit) {
			h.Frequency = FrequencyWeekly
			h.TimesPerWeek = ptr(2)
		},
		func(h *Habit) { h.Frequency = FrequencyMonthly },
	}

	for seed := 1; seed <= 40; seed++ {
		for _, configure := range frequencies {
			h := dailyHabit()
			configure(h)

			var offsets []int
			for i := 0; i < 120; i++ {
				if (i*seed+seed*seed)%7 < 4 || i%(seed%5+2) == 0 {
					offsets = append(offsets, -i)
				}
			}
			snap := Recompute(h, completions(h, offsets...), today)
			require.LessOrEqual(t, snap.CurrentStreak, snap.LongestStreak, "seed %d", seed)
			require.Equal(t, len(offsets), snap.TotalCompletions, "seed %d", seed)
		}
	}
}

func TestStreakRuns(t *testing.T) {
	h := dailyHabit()
	runs := StreakRuns(h, completions(h, -10, -9, -5, -4, -3, 0), today)

	require.Len(t, runs, 3)
	assert.Equal(t, StreakRun{Start: day(0), End: day(0), Length: 1, Current: true}, runs[0])
	assert.Equal(t, StreakRun{Start: day(-5), End: day(-3), Length: 3}, runs[1])
	assert.Equal(t, StreakRun{Start: day(-10), End: day(-9), Length: 2}, runs[2])

	assert.Empty(t, StreakRuns(h, nil, today))
}
