package habits

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultMilestoneThresholds are the streak lengths that earn a milestone.
var DefaultMilestoneThresholds = []int{7, 14, 30, 60, 90, 100, 180, 365}

// Detector turns streak transitions into one-time milestones.
type Detector struct {
	thresholds []int
}

func NewDetector(thresholds []int) *Detector {
	if len(thresholds) == 0 {
		thresholds = DefaultMilestoneThresholds
	}
	sorted := append([]int(nil), thresholds...)
	sort.Ints(sorted)
	return &Detector{thresholds: sorted}
}

func (d *Detector) Thresholds() []int {
	return append([]int(nil), d.thresholds...)
}

// Detect returns a milestone for every threshold t with previous < t <= next
// that exists does not already report. Nothing fires when the streak shrinks.
func (d *Detector) Detect(habitID, userID uuid.UUID, previous, next int, exists func(value int) bool, now time.Time) []Milestone {
	if next <= previous {
		return nil
	}
	var out []Milestone
	for _, t := range d.thresholds {
		if t <= previous {
			continue
		}
		if t > next {
			break
		}
		if exists != nil && exists(t) {
			continue
		}
		out = append(out, Milestone{
			ID:         uuid.New(),
			HabitID:    habitID,
			UserID:     userID,
			Type:       MilestoneStreak,
			Value:      t,
			AchievedAt: now,
		})
	}
	return out
}

// Next returns the smallest threshold above current that has not been earned.
func (d *Detector) Next(current int, earned func(value int) bool) (int, bool) {
	for _, t := range d.thresholds {
		if t <= current {
			continue
		}
		if earned != nil && earned(t) {
			continue
		}
		return t, true
	}
	return 0, false
}
