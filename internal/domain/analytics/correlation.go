package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultCorrelationLookback   = 60
	DefaultCorrelationMinSamples = 14
)

type HabitRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type Correlation struct {
	HabitA      HabitRef `json:"habit_a"`
	HabitB      HabitRef `json:"habit_b"`
	Coefficient float64  `json:"coefficient"`
	Samples     int      `json:"samples"`
	Strength    string   `json:"strength"`
	Direction   string   `json:"direction"`
}

type CorrelationConfig struct {
	LookbackDays int
	MinSamples   int
}

// Correlations computes the Pearson coefficient of every habit pair over the
// days in the lookback window on which both were scheduled. Pairs with too few
// shared days or a constant series are left out.
func Correlations(ctx context.Context, ds *Dataset, cfg CorrelationConfig) ([]Correlation, error) {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultCorrelationLookback
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultCorrelationMinSamples
	}
	today := habits.Day(ds.Today)
	from := habits.AddDays(today, -cfg.LookbackDays)
	to := habits.AddDays(today, -1)

	all := ds.series()
	done := make([]map[int64]struct{}, len(all))
	for i, s := range all {
		done[i] = make(map[int64]struct{}, len(s.qualifying))
		for _, d := range s.qualifying {
			done[i][habits.DayNumber(d)] = struct{}{}
		}
	}

	out := []Correlation{}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if err := canceled(ctx); err != nil {
				return nil, err
			}
			a, b := all[i], all[j]
			var xs, ys []float64
			for d := from; !d.After(to); d = habits.AddDays(d, 1) {
				if !scheduled(a, d) || !scheduled(b, d) {
					continue
				}
				key := habits.DayNumber(d)
				xs = append(xs, indicator(done[i], key))
				ys = append(ys, indicator(done[j], key))
			}
			if len(xs) < cfg.MinSamples {
				continue
			}
			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			out = append(out, Correlation{
				HabitA:      HabitRef{ID: a.habit.ID, Title: a.habit.Title},
				HabitB:      HabitRef{ID: b.habit.ID, Title: b.habit.Title},
				Coefficient: round3(r),
				Samples:     len(xs),
				Strength:    strength(r),
				Direction:   direction(r),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Coefficient) > math.Abs(out[j].Coefficient)
	})
	return out, nil
}

// scheduled reports whether s was due on d, once tracked and outside a pause.
func scheduled(s series, d time.Time) bool {
	return !d.Before(s.since) && !s.habit.InPauseWindow(d) && habits.IsDue(s.habit, d)
}

func indicator(done map[int64]struct{}, key int64) float64 {
	if _, ok := done[key]; ok {
		return 1
	}
	return 0
}

func strength(r float64) string {
	switch abs := math.Abs(r); {
	case abs < 0.3:
		return "weak"
	case abs < 0.6:
		return "moderate"
	}
	return "strong"
}

func direction(r float64) string {
	if r >= 0 {
		return "together"
	}
	return "opposing"
}
