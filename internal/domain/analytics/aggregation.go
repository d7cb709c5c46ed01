package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/google/uuid"
)

const (
	// DefaultCategoryLookback is the window of the category breakdown in days.
	DefaultCategoryLookback = 30
	uncategorized           = "uncategorized"
	maxHeatmapLevel         = 4
)

// DefaultHeatmapLevels are the counts at which a heatmap cell reaches levels 1 through 4.
var DefaultHeatmapLevels = []int{1, 2, 4, 6}

type Summary struct {
	TotalDue       int     `json:"total_due"`
	TotalCompleted int     `json:"total_completed"`
	Rate           float64 `json:"rate"`
}

func (s *Summary) add(t *tally) {
	s.TotalDue += t.due
	s.TotalCompleted += t.completed
}

func (s *Summary) finish() {
	s.Rate = rate(s.TotalCompleted, s.TotalDue)
}

type DayStat struct {
	Date       string  `json:"date"`
	Due        int     `json:"due"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
}

type WeeklyView struct {
	WeekStart string    `json:"week_start"`
	WeekEnd   string    `json:"week_end"`
	Days      []DayStat `json:"days"`
	Summary   Summary   `json:"summary"`
}

type WeekSlice struct {
	Start   string  `json:"start"`
	End     string  `json:"end"`
	Summary Summary `json:"summary"`
}

type MonthlyView struct {
	Year    int         `json:"year"`
	Month   int         `json:"month"`
	Days    []DayStat   `json:"days"`
	Weeks   []WeekSlice `json:"weeks"`
	Summary Summary     `json:"summary"`
}

type HeatmapCell struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"`
}

type HeatmapView struct {
	Year             int           `json:"year"`
	Cells            []HeatmapCell `json:"cells"`
	TotalCompletions int           `json:"total_completions"`
	ActiveDays       int           `json:"active_days"`
	MaxCount         int           `json:"max_count"`
}

type CategoryStat struct {
	Category   string  `json:"category"`
	HabitCount int     `json:"habit_count"`
	Due        int     `json:"due"`
	Completed  int     `json:"completed"`
	Rate       float64 `json:"rate"`
}

type HabitRate struct {
	HabitID   uuid.UUID `json:"habit_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Due       int       `json:"due"`
	Completed int       `json:"completed"`
	Rate      float64   `json:"rate"`
}

type CategoryBreakdownView struct {
	LookbackDays int            `json:"lookback_days"`
	Categories   []CategoryStat `json:"categories"`
	Habits       []HabitRate    `json:"habits"`
}

type WeekComparison struct {
	ThisWeek Summary `json:"this_week"`
	LastWeek Summary `json:"last_week"`
	// Change is the rate difference in percentage points.
	Change float64 `json:"change"`
	Trend  string  `json:"trend"`
}

const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendSame   = "same"
	TrendStable = "stable"
)

// dailyStats sums the anchor tallies of every tracked habit over [from, to].
func dailyStats(ds *Dataset, from, to time.Time) ([]DayStat, map[int64]*tally) {
	merged := make(map[int64]*tally)
	for _, s := range ds.series() {
		for key, t := range s.tallies(from, to, ds.Today) {
			m := merged[key]
			if m == nil {
				m = &tally{}
				merged[key] = m
			}
			m.due += t.due
			m.completed += t.completed
		}
	}

	var days []DayStat
	for d := habits.Day(from); !d.After(habits.Day(to)); d = habits.AddDays(d, 1) {
		stat := DayStat{Date: habits.FormatDate(d)}
		if t := merged[habits.DayNumber(d)]; t != nil {
			stat.Due = t.due
			stat.Completed = t.completed
			stat.Percentage = rate(t.completed, t.due)
		}
		days = append(days, stat)
	}
	return days, merged
}

func summarize(merged map[int64]*tally, from, to time.Time) Summary {
	var s Summary
	for d := habits.Day(from); !d.After(habits.Day(to)); d = habits.AddDays(d, 1) {
		if t := merged[habits.DayNumber(d)]; t != nil {
			s.add(t)
		}
	}
	s.finish()
	return s
}

// Weekly reports the ISO week containing anchor.
func Weekly(ds *Dataset, anchor time.Time) WeeklyView {
	start := habits.WeekStart(anchor)
	end := habits.AddDays(start, 6)
	days, merged := dailyStats(ds, start, end)
	return WeeklyView{
		WeekStart: habits.FormatDate(start),
		WeekEnd:   habits.FormatDate(end),
		Days:      days,
		Summary:   summarize(merged, start, end),
	}
}

// Monthly reports every day of the month, grouped into ISO weeks clipped to the month.
func Monthly(ds *Dataset, year int, month time.Month) MonthlyView {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := habits.MonthEnd(start)
	days, merged := dailyStats(ds, start, end)

	view := MonthlyView{
		Year:    year,
		Month:   int(month),
		Days:    days,
		Summary: summarize(merged, start, end),
	}
	for ws := start; !ws.After(end); {
		we := habits.AddDays(habits.WeekStart(ws), 6)
		if we.After(end) {
			we = end
		}
		view.Weeks = append(view.Weeks, WeekSlice{
			Start:   habits.FormatDate(ws),
			End:     habits.FormatDate(we),
			Summary: summarize(merged, ws, we),
		})
		ws = habits.AddDays(we, 1)
	}
	return view
}

// Heatmap counts qualifying completions per day of year. Levels are bucketed
// by the ascending boundaries in levels.
func Heatmap(ctx context.Context, ds *Dataset, year int, levels []int) (*HeatmapView, error) {
	if len(levels) == 0 {
		levels = DefaultHeatmapLevels
	}
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	counts := make(map[int64]int)
	for _, s := range ds.series() {
		if err := canceled(ctx); err != nil {
			return nil, err
		}
		for _, d := range s.qualifying {
			if d.Before(start) || d.After(end) {
				continue
			}
			counts[habits.DayNumber(d)]++
		}
	}

	view := &HeatmapView{Year: year}
	for d := start; !d.After(end); d = habits.AddDays(d, 1) {
		n := counts[habits.DayNumber(d)]
		view.Cells = append(view.Cells, HeatmapCell{
			Date:  habits.FormatDate(d),
			Count: n,
			Level: levelFor(n, levels),
		})
		view.TotalCompletions += n
		if n > 0 {
			view.ActiveDays++
		}
		if n > view.MaxCount {
			view.MaxCount = n
		}
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	return view, nil
}

// levelFor returns how many boundaries count reaches, capped at 4.
func levelFor(count int, levels []int) int {
	level := 0
	for _, b := range levels {
		if count >= b {
			level++
		}
	}
	if level > maxHeatmapLevel {
		level = maxHeatmapLevel
	}
	return level
}

// CategoryBreakdown rates categories and habits over the last lookbackDays days.
func CategoryBreakdown(ds *Dataset, lookbackDays int) CategoryBreakdownView {
	if lookbackDays <= 0 {
		lookbackDays = DefaultCategoryLookback
	}
	to := habits.Day(ds.Today)
	from := habits.AddDays(to, -(lookbackDays - 1))

	view := CategoryBreakdownView{LookbackDays: lookbackDays}
	byCategory := make(map[string]*CategoryStat)
	for _, s := range ds.series() {
		t := s.window(from, to, ds.Today)
		category := s.habit.Category
		if category == "" {
			category = uncategorized
		}

		view.Habits = append(view.Habits, HabitRate{
			HabitID:   s.habit.ID,
			Title:     s.habit.Title,
			Category:  category,
			Due:       t.due,
			Completed: t.completed,
			Rate:      rate(t.completed, t.due),
		})

		c := byCategory[category]
		if c == nil {
			c = &CategoryStat{Category: category}
			byCategory[category] = c
		}
		c.HabitCount++
		c.Due += t.due
		c.Completed += t.completed
	}

	for _, c := range byCategory {
		c.Rate = rate(c.Completed, c.Due)
		view.Categories = append(view.Categories, *c)
	}
	sort.Slice(view.Categories, func(i, j int) bool {
		a, b := view.Categories[i], view.Categories[j]
		if a.Rate != b.Rate {
			return a.Rate > b.Rate
		}
		return a.Category < b.Category
	})
	sort.Slice(view.Habits, func(i, j int) bool {
		a, b := view.Habits[i], view.Habits[j]
		if a.Rate != b.Rate {
			return a.Rate > b.Rate
		}
		return a.Title < b.Title
	})
	return view
}

// CompareWeeks compares this ISO week through today with the previous full week.
func CompareWeeks(ds *Dataset, threshold float64) WeekComparison {
	today := habits.Day(ds.Today)
	thisStart := habits.WeekStart(today)
	lastStart := habits.AddDays(thisStart, -7)
	lastEnd := habits.AddDays(thisStart, -1)

	_, thisTallies := dailyStats(ds, thisStart, today)
	_, lastTallies := dailyStats(ds, lastStart, lastEnd)
	cmp := WeekComparison{
		ThisWeek: summarize(thisTallies, thisStart, today),
		LastWeek: summarize(lastTallies, lastStart, lastEnd),
	}
	cmp.Change = round1(cmp.ThisWeek.Rate - cmp.LastWeek.Rate)
	cmp.Trend = classify(cmp.Change, threshold, TrendSame)
	return cmp
}

func classify(change, threshold float64, flat string) string {
	switch {
	case change >= threshold && change > 0:
		return TrendUp
	case change <= -threshold && change < 0:
		return TrendDown
	}
	return flat
}
