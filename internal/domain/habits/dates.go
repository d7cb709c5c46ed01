package habits

import (
	"math/bits"
	"sort"
	"time"
)

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

// Day normalizes t to midnight UTC of the calendar day t falls on in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayNumber is the number of whole days between the Unix epoch and t's calendar day.
func DayNumber(t time.Time) int64 {
	return Day(t).Unix() / 86400
}

// DaysBetween returns b - a in whole calendar days.
func DaysBetween(a, b time.Time) int {
	return int(DayNumber(b) - DayNumber(a))
}

func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// WeekStart returns the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	d := Day(t)
	return AddDays(d, -(ISOWeekday(d) - 1))
}

func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// ParseDate parses a YYYY-MM-DD string into a normalized day.
func ParseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return Day(t), nil
}

func FormatDate(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// Weekdays is a set of ISO weekdays stored as a bitmask, bit 0 is Monday.
type Weekdays uint8

// NewWeekdays builds a set from ISO weekday numbers.
func NewWeekdays(days ...int) (Weekdays, error) {
	var w Weekdays
	for _, d := range days {
		if d < 1 || d > 7 {
			return 0, invalid("days_of_week", "values must be between 1 (Monday) and 7 (Sunday)")
		}
		w |= 1 << (d - 1)
	}
	return w, nil
}

func (w Weekdays) Has(isoDay int) bool {
	if isoDay < 1 || isoDay > 7 {
		return false
	}
	return w&(1<<(isoDay-1)) != 0
}

func (w Weekdays) Len() int {
	return bits.OnesCount8(uint8(w & 0x7f))
}

func (w Weekdays) Empty() bool {
	return w&0x7f == 0
}

// Days returns the members in ascending order.
func (w Weekdays) Days() []int {
	days := make([]int, 0, w.Len())
	for d := 1; d <= 7; d++ {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days
}
