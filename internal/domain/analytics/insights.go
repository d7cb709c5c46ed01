package analytics

import (
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
)

const (
	consistencyWindow    = 7
	completionWindow     = 30
	streakNormalizer     = 7
	DefaultWeekdayWindow = 90

	consistencyWeight = 0.4
	streakWeight      = 0.3
	completionWeight  = 0.3
)

type ProductivityScore struct {
	Score         float64 `json:"score"`
	Grade         string  `json:"grade"`
	Consistency   float64 `json:"consistency"`
	Streaks       float64 `json:"streaks"`
	Completion    float64 `json:"completion"`
	PreviousScore float64 `json:"previous_score"`
	Trend         string  `json:"trend"`
}

// Productivity scores the dataset and compares it with the score a week earlier.
func Productivity(ds *Dataset, trendThreshold float64) ProductivityScore {
	current := score(ds)
	previous := score(ds.at(habits.AddDays(ds.Today, -7)))

	current.PreviousScore = previous.Score
	current.Trend = classify(round1(current.Score-previous.Score), trendThreshold, TrendStable)
	return current
}

func score(ds *Dataset) ProductivityScore {
	today := habits.Day(ds.Today)
	all := ds.series()

	var week, month tally
	var strength float64
	for _, s := range all {
		w := s.window(habits.AddDays(today, -(consistencyWindow-1)), today, today)
		m := s.window(habits.AddDays(today, -(completionWindow-1)), today, today)
		week.due += w.due
		week.completed += w.completed
		month.due += m.due
		month.completed += m.completed

		snap := s.snapshot(ds.Records[s.habit.ID], today)
		norm := snap.LongestStreak
		if norm < streakNormalizer {
			norm = streakNormalizer
		}
		ratio := float64(snap.CurrentStreak) / float64(norm)
		if ratio > 1 {
			ratio = 1
		}
		strength += ratio
	}

	var result ProductivityScore
	result.Consistency = rate(week.completed, week.due)
	result.Completion = rate(month.completed, month.due)
	if len(all) > 0 {
		result.Streaks = round1(strength / float64(len(all)) * 100)
	}
	result.Score = round1(consistencyWeight*result.Consistency +
		streakWeight*result.Streaks +
		completionWeight*result.Completion)
	result.Grade = Grade(result.Score)
	return result
}

// Grade maps a 0..100 score to a letter.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	}
	return "F"
}

type WeekdayStat struct {
	Weekday   int     `json:"weekday"`
	Name      string  `json:"name"`
	Due       int     `json:"due"`
	Completed int     `json:"completed"`
	Rate      float64 `json:"rate"`
}

type DayOfWeekReport struct {
	LookbackDays int           `json:"lookback_days"`
	Days         []WeekdayStat `json:"days"`
	Best         *WeekdayStat  `json:"best"`
	Worst        *WeekdayStat  `json:"worst"`
}

// DayOfWeekPerformance rates each ISO weekday from day-granular habits. It
// returns nil when nothing was due in the window.
func DayOfWeekPerformance(ds *Dataset, lookbackDays int) *DayOfWeekReport {
	if lookbackDays <= 0 {
		lookbackDays = DefaultWeekdayWindow
	}
	today := habits.Day(ds.Today)
	from := habits.AddDays(today, -(lookbackDays - 1))

	var buckets [7]tally
	for _, s := range ds.series() {
		if s.habit.Granularity() != habits.GranularityDay {
			continue
		}
		for key, t := range s.tallies(from, today, today) {
			wd := habits.ISOWeekday(time.Unix(key*86400, 0).UTC())
			buckets[wd-1].due += t.due
			buckets[wd-1].completed += t.completed
		}
	}

	report := &DayOfWeekReport{LookbackDays: lookbackDays}
	hasData := false
	for i, b := range buckets {
		wd := i + 1
		report.Days = append(report.Days, WeekdayStat{
			Weekday:   wd,
			Name:      weekdayName(wd),
			Due:       b.due,
			Completed: b.completed,
			Rate:      rate(b.completed, b.due),
		})
		if b.due > 0 {
			hasData = true
		}
	}
	if !hasData {
		return nil
	}

	for i := range report.Days {
		d := &report.Days[i]
		if d.Due == 0 {
			continue
		}
		if report.Best == nil || d.Rate > report.Best.Rate {
			report.Best = d
		}
		if report.Worst == nil || d.Rate < report.Worst.Rate {
			report.Worst = d
		}
	}
	return report
}

func weekdayName(isoDay int) string {
	return time.Weekday(isoDay % 7).String()
}
