package habits

import "time"

// StreakRun is a maximal run of consecutive satisfied occurrences.
type StreakRun struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Length  int       `json:"length"`
	Current bool      `json:"current"`
}

// Recompute derives the streak snapshot of h from its ledger as of today.
//
// Occurrences are walked oldest first starting at the first qualifying day. A
// satisfied occurrence extends the run; an unsatisfied one resets it unless it
// is still pending (contains today) or excused by the pause window.
func Recompute(h *Habit, records []CompletionRecord, today time.Time) StreakSnapshot {
	today = Day(today)
	dates := QualifyingDates(h, records)
	snap := StreakSnapshot{ComputedOn: today, TotalCompletions: len(dates)}
	if len(dates) == 0 {
		return snap
	}
	last := dates[len(dates)-1]
	snap.LastCompletedAt = &last

	for _, run := range walkRuns(h, dates, today) {
		if run.Length > snap.LongestStreak {
			snap.LongestStreak = run.Length
		}
		if run.Current {
			start := run.Start
			snap.CurrentStreak = run.Length
			snap.StreakStartDate = &start
		}
	}
	return snap
}

// StreakRuns lists every streak of h up to today, newest first.
func StreakRuns(h *Habit, records []CompletionRecord, today time.Time) []StreakRun {
	runs := walkRuns(h, QualifyingDates(h, records), Day(today))
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	return runs
}

func walkRuns(h *Habit, dates []time.Time, today time.Time) []StreakRun {
	if len(dates) == 0 || dates[0].After(today) {
		return nil
	}

	var runs []StreakRun
	var cur *StreakRun
	for _, occ := range Occurrences(h, dates, dates[0], today, today) {
		switch {
		case occ.Satisfied():
			if cur == nil {
				cur = &StreakRun{Start: occ.Start}
			}
			cur.Length++
			cur.End = *occ.SatisfiedOn
		case occ.Pending, occ.Excused:
			// neither extends nor breaks the run
		default:
			if cur != nil {
				runs = append(runs, *cur)
				cur = nil
			}
		}
	}
	if cur != nil {
		cur.Current = true
		runs = append(runs, *cur)
	}
	return runs
}
