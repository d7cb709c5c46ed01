package habits

import "time"

// Clock reports the current user day.
type Clock interface {
	Today() time.Time
}

// SystemClock maps wall time to a day in Location. Times before DayStartHour
// still belong to the previous day.
type SystemClock struct {
	Location     *time.Location
	DayStartHour int
}

func (c SystemClock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now().In(loc).Add(-time.Duration(c.DayStartHour) * time.Hour)
	return Day(now)
}

// FixedClock always reports the same day.
type FixedClock struct {
	Date time.Time
}

func (c *FixedClock) Today() time.Time {
	return Day(c.Date)
}

// Advance moves the clock by n days.
func (c *FixedClock) Advance(n int) {
	c.Date = AddDays(c.Date, n)
}
