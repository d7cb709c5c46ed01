package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/google/uuid"
)

const (
	recentOccurrences = 14
	minRecentRate     = 0.1

	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type Prediction struct {
	HabitID              uuid.UUID `json:"habit_id"`
	Title                string    `json:"title"`
	CurrentStreak        int       `json:"current_streak"`
	NextMilestone        int       `json:"next_milestone"`
	OccurrencesRemaining int       `json:"occurrences_remaining"`
	RecentRate           float64   `json:"recent_rate"`
	PredictedDays        int       `json:"predicted_days"`
	PredictedDate        string    `json:"predicted_date"`
	RiskLevel            string    `json:"risk_level"`
	RiskReason           string    `json:"risk_reason,omitempty"`
}

// Predictions estimates when each habit with a running streak reaches its next
// unearned milestone. earned maps habit ids to the milestone values they hold.
func Predictions(ds *Dataset, earned map[uuid.UUID]map[int]bool, detector *habits.Detector) []Prediction {
	if detector == nil {
		detector = habits.NewDetector(nil)
	}
	today := habits.Day(ds.Today)

	out := []Prediction{}
	for _, s := range ds.series() {
		if s.habit.Frozen(today) {
			continue
		}
		snap := s.snapshot(ds.Records[s.habit.ID], today)
		if snap.CurrentStreak <= 0 {
			continue
		}
		held := earned[s.habit.ID]
		next, ok := detector.Next(snap.CurrentStreak, func(v int) bool { return held[v] })
		if !ok {
			continue
		}

		total, misses := recentHistory(s, today)
		recent := 1.0
		if total > 0 {
			recent = float64(total-misses) / float64(total)
		}
		if recent < minRecentRate {
			recent = minRecentRate
		}

		remaining := next - snap.CurrentStreak
		days := int(math.Ceil(float64(remaining)/recent)) * s.habit.PeriodDays()
		p := Prediction{
			HabitID:              s.habit.ID,
			Title:                s.habit.Title,
			CurrentStreak:        snap.CurrentStreak,
			NextMilestone:        next,
			OccurrencesRemaining: remaining,
			RecentRate:           round3(recent),
			PredictedDays:        days,
			PredictedDate:        habits.FormatDate(habits.AddDays(today, days)),
			RiskLevel:            RiskLow,
		}
		switch {
		case misses >= 4:
			p.RiskLevel = RiskHigh
		case misses >= 2:
			p.RiskLevel = RiskMedium
		}
		if p.RiskLevel != RiskLow {
			p.RiskReason = fmt.Sprintf("missed %d of the last %d scheduled occurrences", misses, total)
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PredictedDays != out[j].PredictedDays {
			return out[i].PredictedDays < out[j].PredictedDays
		}
		return out[i].Title < out[j].Title
	})
	return out
}

// recentHistory counts the last closed occurrences of s and how many were missed.
// Excused occurrences that were not satisfied are ignored.
func recentHistory(s series, today time.Time) (int, int) {
	span := s.habit.PeriodDays()
	if span < 7 {
		span = 7
	}
	from := habits.AddDays(today, -(recentOccurrences+1)*span)
	if s.since.After(from) {
		from = s.since
	}
	var closed []habits.Occurrence
	for _, occ := range habits.Occurrences(s.habit, s.qualifying, from, today, today) {
		if !occ.Closed(today) || (occ.Excused && !occ.Satisfied()) {
			continue
		}
		closed = append(closed, occ)
	}
	if len(closed) > recentOccurrences {
		closed = closed[len(closed)-recentOccurrences:]
	}
	misses := 0
	for _, occ := range closed {
		if !occ.Satisfied() {
			misses++
		}
	}
	return len(closed), misses
}
