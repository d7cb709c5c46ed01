package habits

import (
	"sort"
	"time"
)

// Qualifier decides whether a ledger entry counts toward streaks.
type Qualifier interface {
	Qualifies(rec *CompletionRecord) bool
}

// flagQualifier trusts the stored completed flag. Used for BOOLEAN habits.
type flagQualifier struct{}

func (flagQualifier) Qualifies(rec *CompletionRecord) bool {
	return rec.Completed
}

// targetQualifier ignores the flag: value must reach the target.
type targetQualifier struct {
	target float64
}

func (q targetQualifier) Qualifies(rec *CompletionRecord) bool {
	return rec.Value != nil && *rec.Value >= q.target
}

type neverQualifier struct{}

func (neverQualifier) Qualifies(*CompletionRecord) bool { return false }

// QualifierFor returns the qualification rule of the habit's type.
func QualifierFor(h *Habit) Qualifier {
	switch h.HabitType {
	case HabitTypeNumeric, HabitTypeDuration:
		if h.TargetValue == nil {
			return neverQualifier{}
		}
		return targetQualifier{target: *h.TargetValue}
	case HabitTypeBoolean:
		return flagQualifier{}
	}
	return neverQualifier{}
}

func IsQualifyingCompletion(h *Habit, rec *CompletionRecord) bool {
	if rec == nil {
		return false
	}
	return QualifierFor(h).Qualifies(rec)
}

// QualifyingDates returns the distinct days with a qualifying record, ascending.
func QualifyingDates(h *Habit, records []CompletionRecord) []time.Time {
	q := QualifierFor(h)
	seen := make(map[int64]struct{}, len(records))
	dates := make([]time.Time, 0, len(records))
	for i := range records {
		if !q.Qualifies(&records[i]) {
			continue
		}
		d := Day(records[i].Date)
		key := DayNumber(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
