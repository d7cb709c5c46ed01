package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/google/uuid"
)

// ErrComputationCanceled is returned when a computation is abandoned before it
// finished. It wraps the context's error.
var ErrComputationCanceled = errors.New("analytics computation canceled")

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrComputationCanceled, err)
	}
	return nil
}

// Dataset is everything the aggregation and insight functions read: one user's
// habits, their full ledgers and the user's current day.
type Dataset struct {
	Habits  []habits.Habit
	Records map[uuid.UUID][]habits.CompletionRecord
	Today   time.Time
}

// series is one tracked habit with its qualifying days resolved.
type series struct {
	habit      *habits.Habit
	qualifying []time.Time
	since      time.Time
}

func (ds *Dataset) series() []series {
	out := make([]series, 0, len(ds.Habits))
	for i := range ds.Habits {
		h := &ds.Habits[i]
		if !h.Tracked() {
			continue
		}
		out = append(out, series{
			habit:      h,
			qualifying: habits.QualifyingDates(h, ds.Records[h.ID]),
			since:      trackedSince(h, ds.Records[h.ID]),
		})
	}
	return out
}

// trackedSince is the creation day of h, or its earliest record when the
// ledger was backfilled further.
func trackedSince(h *habits.Habit, records []habits.CompletionRecord) time.Time {
	since := habits.Day(h.CreatedAt)
	for _, rec := range records {
		if d := habits.Day(rec.Date); d.Before(since) {
			since = d
		}
	}
	return since
}

// at returns a copy of the dataset as it looked on day.
func (ds *Dataset) at(day time.Time) *Dataset {
	day = habits.Day(day)
	shifted := &Dataset{Today: day, Records: make(map[uuid.UUID][]habits.CompletionRecord, len(ds.Records))}
	for i := range ds.Habits {
		h := ds.Habits[i]
		if trackedSince(&h, ds.Records[h.ID]).After(day) {
			continue
		}
		shifted.Habits = append(shifted.Habits, h)
		for _, rec := range ds.Records[h.ID] {
			if !habits.Day(rec.Date).After(day) {
				shifted.Records[h.ID] = append(shifted.Records[h.ID], rec)
			}
		}
	}
	return shifted
}

type tally struct {
	due       int
	completed int
}

// tallies attributes every occurrence of s to its anchor day and counts the
// anchors falling inside [from, to], keyed by day number.
func (s series) tallies(from, to, today time.Time) map[int64]*tally {
	from, to = habits.Day(from), habits.Day(to)
	out := make(map[int64]*tally)
	start := from
	if s.since.After(start) {
		start = s.since
	}
	if start.After(to) {
		return out
	}
	for _, occ := range habits.Occurrences(s.habit, s.qualifying, start, to, today) {
		anchor, ok := occ.AnchorDay(today)
		if !ok || anchor.Before(start) || anchor.After(to) {
			continue
		}
		key := habits.DayNumber(anchor)
		t := out[key]
		if t == nil {
			t = &tally{}
			out[key] = t
		}
		t.due++
		if occ.Satisfied() {
			t.completed++
		}
	}
	return out
}

func (s series) window(from, to, today time.Time) tally {
	var sum tally
	for _, t := range s.tallies(from, to, today) {
		sum.due += t.due
		sum.completed += t.completed
	}
	return sum
}

// snapshot recomputes the streak of s as of today.
func (s series) snapshot(records []habits.CompletionRecord, today time.Time) habits.StreakSnapshot {
	return habits.Recompute(s.habit, records, today)
}

func rate(completed, due int) float64 {
	if due <= 0 {
		return 0
	}
	return round1(float64(completed) / float64(due) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
