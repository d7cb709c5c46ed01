package habits

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDue(t *testing.T) {
	mwf, _ := NewWeekdays(1, 3, 5)

	tests := []struct {
		name  string
		habit Habit
		date  time.Time
		due   bool
	}{
		{"Daily is due every day", Habit{Frequency: FrequencyDaily}, date(2024, 3, 17), true},
		{"Weekly fixed day matches", Habit{Frequency: FrequencyWeekly, DaysOfWeek: mwf}, date(2024, 3, 18), true},
		{"Weekly fixed day skips Tuesday", Habit{Frequency: FrequencyWeekly, DaysOfWeek: mwf}, date(2024, 3, 19), false},
		{"Weekly quota without days covers every day", Habit{Frequency: FrequencyWeekly, TimesPerWeek: ptr(2)}, date(2024, 3, 17), true},
		{"Weekly quota with pool only covers the pool", Habit{Frequency: FrequencyWeekly, DaysOfWeek: mwf, TimesPerWeek: ptr(2)}, date(2024, 3, 17), false},
		{"Monthly candidate day", Habit{Frequency: FrequencyMonthly}, date(2024, 3, 31), true},
		{"Unknown frequency", Habit{Frequency: "HOURLY"}, date(2024, 3, 18), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.due, IsDue(&tt.habit, tt.date))
		})
	}
}

func TestGranularity(t *testing.T) {
	mwf, _ := NewWeekdays(1, 3, 5)

	assert.Equal(t, GranularityDay, (&Habit{Frequency: FrequencyDaily}).Granularity())
	assert.Equal(t, GranularityDay, (&Habit{Frequency: FrequencyWeekly, DaysOfWeek: mwf}).Granularity())
	// a quota covering every listed day is the same as fixed days
	assert.Equal(t, GranularityDay, (&Habit{Frequency: FrequencyWeekly, DaysOfWeek: mwf, TimesPerWeek: ptr(3)}).Granularity())
	assert.Equal(t, GranularityWeek, (&Habit{Frequency: FrequencyWeekly, DaysOfWeek: mwf, TimesPerWeek: ptr(2)}).Granularity())
	assert.Equal(t, GranularityWeek, (&Habit{Frequency: FrequencyWeekly, TimesPerWeek: ptr(4)}).Granularity())
	assert.Equal(t, GranularityMonth, (&Habit{Frequency: FrequencyMonthly}).Granularity())
}

func TestDueOnFirstUnsatisfiedDay(t *testing.T) {
	quota := &Habit{Frequency: FrequencyWeekly, TimesPerWeek: ptr(2)}
	done := []time.Time{date(2024, 3, 18), date(2024, 3, 19)}

	assert.True(t, DueOn(quota, date(2024, 3, 19), done), "only one completion before Tuesday")
	assert.False(t, DueOn(quota, date(2024, 3, 20), done), "quota met before Wednesday")
	assert.True(t, DueOn(quota, date(2024, 3, 25), done), "a new week starts on Monday")

	monthly := &Habit{Frequency: FrequencyMonthly}
	assert.True(t, DueOn(monthly, date(2024, 3, 1), []time.Time{date(2024, 3, 1)}))
	assert.False(t, DueOn(monthly, date(2024, 3, 20), []time.Time{date(2024, 3, 1)}))
	assert.True(t, DueOn(monthly, date(2024, 4, 1), []time.Time{date(2024, 3, 1)}))

	daily := &Habit{Frequency: FrequencyDaily}
	assert.True(t, DueOn(daily, date(2024, 3, 20), []time.Time{date(2024, 3, 20)}))
}

func TestOccurrencesWeeklyQuota(t *testing.T) {
	h := &Habit{Frequency: FrequencyWeekly, TimesPerWeek: ptr(2)}
	done := []time.Time{date(2024, 3, 11), date(2024, 3, 14), date(2024, 3, 15), date(2024, 3, 19)}

	occs := Occurrences(h, done, date(2024, 3, 13), date(2024, 3, 20), today)
	require.Len(t, occs, 2)

	first := occs[0]
	assert.Equal(t, date(2024, 3, 11), first.Start)
	assert.Equal(t, date(2024, 3, 17), first.End)
	assert.Equal(t, 2, first.Target)
	assert.Equal(t, 3, first.Completed)
	require.NotNil(t, first.SatisfiedOn)
	assert.Equal(t, date(2024, 3, 14), *first.SatisfiedOn)
	assert.True(t, first.Closed(today))
	assert.False(t, first.Pending)

	second := occs[1]
	assert.True(t, second.Pending)
	assert.False(t, second.Satisfied())
	assert.Nil(t, second.SatisfiedOn)
	_, anchored := second.AnchorDay(today)
	assert.False(t, anchored, "an open unsatisfied week has no anchor yet")
}

func TestOccurrencesDailyMarksPauseAndToday(t *testing.T) {
	h := &Habit{Frequency: FrequencyDaily, PausedAt: ptr(day(-2)), PausedUntil: ptr(day(-1))}
	occs := Occurrences(h, []time.Time{day(-3)}, day(-3), today, today)

	require.Len(t, occs, 4)
	assert.True(t, occs[0].Satisfied())
	assert.True(t, occs[1].Excused)
	assert.True(t, occs[2].Excused)
	assert.True(t, occs[3].Pending)

	anchor, ok := occs[0].AnchorDay(today)
	require.True(t, ok)
	assert.Equal(t, day(-3), anchor)
	_, ok = occs[1].AnchorDay(today)
	assert.False(t, ok, "excused misses are not attributed")

	assert.Nil(t, Occurrences(h, nil, today, day(-1), today))
}

func TestWeekdays(t *testing.T) {
	w, err := NewWeekdays(7, 1, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7}, w.Days())
	assert.Equal(t, 3, w.Len())
	assert.True(t, w.Has(7))
	assert.False(t, w.Has(2))
	assert.False(t, w.Has(0))
	assert.True(t, Weekdays(0).Empty())

	for _, bad := range []int{0, 8, -1} {
		_, err := NewWeekdays(bad)
		assert.True(t, errors.Is(err, ErrInvalidInput), "day %d", bad)
	}
}

func TestDateHelpers(t *testing.T) {
	sunday := date(2024, 3, 24)
	assert.Equal(t, 7, ISOWeekday(sunday))
	assert.Equal(t, 1, ISOWeekday(date(2024, 3, 18)))
	assert.Equal(t, date(2024, 3, 18), WeekStart(sunday))
	assert.Equal(t, date(2024, 2, 29), MonthEnd(date(2024, 2, 10)))
	assert.Equal(t, 5, DaysBetween(date(2024, 2, 27), date(2024, 3, 3)))

	est := time.FixedZone("EST", -5*3600)
	late := time.Date(2024, 3, 20, 23, 30, 0, 0, est)
	assert.Equal(t, date(2024, 3, 20), Day(late), "the calendar day is taken in the time's own zone")

	d, err := ParseDate("date", "2024-03-20")
	require.NoError(t, err)
	assert.Equal(t, today, d)
	assert.Equal(t, "2024-03-20", FormatDate(d))

	_, err = ParseDate("date", "20/03/2024")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "date", verr.Field)
}

func TestFixedClockAdvance(t *testing.T) {
	fixed := &FixedClock{Date: today}
	fixed.Advance(2)
	assert.Equal(t, day(2), fixed.Today())
}
