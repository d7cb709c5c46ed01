package habits

import "time"

// Occurrence is one scheduled unit of a habit: a single due day, an ISO week
// with a completion quota, or a calendar month.
type Occurrence struct {
	Start     time.Time
	End       time.Time
	Target    int
	Completed int
	// SatisfiedOn is the day the target was reached.
	SatisfiedOn *time.Time
	// Excused occurrences overlap the pause window.
	Excused bool
	// Pending occurrences contain today and may still be satisfied.
	Pending bool
}

func (o Occurrence) Satisfied() bool {
	return o.Completed >= o.Target
}

// Closed occurrences can no longer change outcome.
func (o Occurrence) Closed(today time.Time) bool {
	return o.End.Before(Day(today))
}

// AnchorDay attributes the occurrence to a single calendar day: the day its
// target was reached, or its last day once that day has arrived.
func (o Occurrence) AnchorDay(today time.Time) (time.Time, bool) {
	if o.SatisfiedOn != nil {
		return *o.SatisfiedOn, true
	}
	if o.Excused || o.End.After(Day(today)) {
		return time.Time{}, false
	}
	return o.End, true
}

// IsDue reports whether date is a due day (day-granular habits) or a candidate
// day inside the period (weekly quota and monthly habits).
func IsDue(h *Habit, date time.Time) bool {
	switch h.Frequency {
	case FrequencyDaily, FrequencyMonthly:
		return true
	case FrequencyWeekly:
		if h.DaysOfWeek.Empty() {
			_, quota := h.weekQuota()
			return quota
		}
		return h.DaysOfWeek.Has(ISOWeekday(date))
	}
	return false
}

// DueOn applies "first unsatisfied day" semantics: a period habit is only due on
// a candidate day while its period target is unmet by completions before that day.
func DueOn(h *Habit, date time.Time, qualifying []time.Time) bool {
	date = Day(date)
	if !IsDue(h, date) {
		return false
	}
	if h.Granularity() == GranularityDay {
		return true
	}
	start, _, target := periodOf(h, date)
	done := 0
	for _, d := range qualifying {
		if !d.Before(start) && d.Before(date) && IsDue(h, d) {
			done++
		}
	}
	return done < target
}

// periodOf returns the bounds and target of the period containing date.
func periodOf(h *Habit, date time.Time) (time.Time, time.Time, int) {
	switch h.Granularity() {
	case GranularityWeek:
		quota, _ := h.weekQuota()
		start := WeekStart(date)
		return start, AddDays(start, 6), quota
	case GranularityMonth:
		return MonthStart(date), MonthEnd(date), 1
	}
	d := Day(date)
	return d, d, 1
}

// Occurrences lists the scheduled units overlapping [from, to] in ascending order.
// qualifying must hold the habit's qualifying days.
func Occurrences(h *Habit, qualifying []time.Time, from, to, today time.Time) []Occurrence {
	from, to, today = Day(from), Day(to), Day(today)
	if to.Before(from) {
		return nil
	}
	done := make(map[int64]struct{}, len(qualifying))
	for _, d := range qualifying {
		done[DayNumber(d)] = struct{}{}
	}

	var occs []Occurrence
	if h.Granularity() == GranularityDay {
		for d := from; !d.After(to); d = AddDays(d, 1) {
			if !IsDue(h, d) {
				continue
			}
			occ := Occurrence{Start: d, End: d, Target: 1, Pending: d.Equal(today)}
			if _, ok := done[DayNumber(d)]; ok {
				day := d
				occ.Completed = 1
				occ.SatisfiedOn = &day
			}
			occ.Excused = h.InPauseWindow(d)
			occs = append(occs, occ)
		}
		return occs
	}

	start, _, _ := periodOf(h, from)
	for !start.After(to) {
		pStart, pEnd, target := periodOf(h, start)
		occ := Occurrence{
			Start:   pStart,
			End:     pEnd,
			Target:  target,
			Pending: !today.Before(pStart) && !today.After(pEnd),
		}
		for d := pStart; !d.After(pEnd); d = AddDays(d, 1) {
			if h.InPauseWindow(d) {
				occ.Excused = true
			}
			if _, ok := done[DayNumber(d)]; !ok || !IsDue(h, d) {
				continue
			}
			occ.Completed++
			if occ.Completed == target {
				day := d
				occ.SatisfiedOn = &day
			}
		}
		occs = append(occs, occ)
		start = AddDays(pEnd, 1)
	}
	return occs
}
