package habits

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const historyPageSize = 100

// CheckInInput represents one completion event for a habit and day
type CheckInInput struct {
	HabitID   uuid.UUID
	UserID    uuid.UUID
	Date      time.Time
	Completed bool
	Value     *float64
	Notes     string
}

type CheckInResult struct {
	Record     CompletionRecord `json:"record"`
	Snapshot   StreakSnapshot   `json:"snapshot"`
	Milestones []Milestone      `json:"milestones"`
	// Frozen is set when the habit is archived or paused and derived fields were left alone.
	Frozen   bool `json:"frozen"`
	Previous int  `json:"-"`
}

type UndoResult struct {
	Removed  bool           `json:"removed"`
	Snapshot StreakSnapshot `json:"snapshot"`
	Frozen   bool           `json:"frozen"`
	Previous int            `json:"-"`
}

// Ledger applies check-ins and undos and keeps the derived streak fields in
// step with the stored records.
type Ledger struct {
	habits     HabitStore
	records    LedgerStore
	milestones MilestoneStore
	detector   *Detector
	clock      Clock
	logger     *zap.Logger
}

func NewLedger(repos Repositories, detector *Detector, clock Clock, logger *zap.Logger) *Ledger {
	if detector == nil {
		detector = NewDetector(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		habits:     repos.Habits,
		records:    repos.Ledger,
		milestones: repos.Milestones,
		detector:   detector,
		clock:      clock,
		logger:     logger,
	}
}

// ownedHabit loads a habit, hiding habits of other users.
func (l *Ledger) ownedHabit(ctx context.Context, habitID, userID uuid.UUID) (*Habit, error) {
	habit, err := l.habits.Get(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, ErrHabitNotFound
	}
	return habit, nil
}

// CheckIn upserts the record for (habit, date) and recomputes the streak.
// Repeating a call with identical input leaves the same state behind.
func (l *Ledger) CheckIn(ctx context.Context, in CheckInInput) (*CheckInResult, error) {
	habit, err := l.ownedHabit(ctx, in.HabitID, in.UserID)
	if err != nil {
		return nil, err
	}
	today := l.clock.Today()
	if err := validateCheckIn(habit, in, today); err != nil {
		checkInsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	rec := CompletionRecord{
		HabitID:   habit.ID,
		UserID:    habit.UserID,
		Date:      Day(in.Date),
		Completed: in.Completed,
		Value:     in.Value,
		Notes:     in.Notes,
	}
	version, err := l.records.Upsert(ctx, &rec)
	if err != nil {
		checkInsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to store completion: %w", err)
	}
	checkInsTotal.WithLabelValues("stored").Inc()

	previous := habit.CurrentStreak
	snap, milestones, frozen, err := l.recompute(ctx, habit, version, today)
	if err != nil {
		return nil, err
	}
	return &CheckInResult{
		Record:     rec,
		Snapshot:   snap,
		Milestones: milestones,
		Frozen:     frozen,
		Previous:   previous,
	}, nil
}

// Undo removes the record for (habit, date). A missing record is not an error.
func (l *Ledger) Undo(ctx context.Context, habitID, userID uuid.UUID, date time.Time) (*UndoResult, error) {
	habit, err := l.ownedHabit(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, invalid("date", "is required")
	}

	removed, version, err := l.records.Delete(ctx, habit.ID, date)
	if err != nil {
		checkInsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to remove completion: %w", err)
	}
	if removed {
		checkInsTotal.WithLabelValues("undone").Inc()
	} else {
		checkInsTotal.WithLabelValues("undo_noop").Inc()
	}

	previous := habit.CurrentStreak
	snap, _, frozen, err := l.recompute(ctx, habit, version, l.clock.Today())
	if err != nil {
		return nil, err
	}
	return &UndoResult{Removed: removed, Snapshot: snap, Frozen: frozen, Previous: previous}, nil
}

// Recompute refreshes the derived fields of habit from its full ledger.
func (l *Ledger) Recompute(ctx context.Context, habit *Habit) (StreakSnapshot, []Milestone, error) {
	snap, milestones, _, err := l.recompute(ctx, habit, habit.LedgerVersion, l.clock.Today())
	return snap, milestones, err
}

func (l *Ledger) recompute(ctx context.Context, habit *Habit, version int64, today time.Time) (StreakSnapshot, []Milestone, bool, error) {
	if habit.Frozen(today) {
		return habit.Snapshot(), nil, true, nil
	}

	start := time.Now()
	records, err := l.records.Query(ctx, habit.ID, DateRange{})
	if err != nil {
		return StreakSnapshot{}, nil, false, fmt.Errorf("failed to load ledger: %w", err)
	}
	previous := habit.CurrentStreak
	snap := Recompute(habit, records, today)
	snap.Version = version
	recomputeDuration.Observe(time.Since(start).Seconds())

	applied, err := l.habits.UpdateDerivedFields(ctx, habit.ID, snap)
	if err != nil {
		return StreakSnapshot{}, nil, false, fmt.Errorf("failed to store streak: %w", err)
	}
	if applied {
		habit.applySnapshot(snap)
	} else {
		l.logger.Debug("Skipped stale streak write",
			zap.String("habit_id", habit.ID.String()),
			zap.Int64("version", version))
	}

	milestones, err := l.recordMilestones(ctx, habit, previous, snap.CurrentStreak)
	if err != nil {
		return StreakSnapshot{}, nil, false, err
	}
	return snap, milestones, false, nil
}

func (l *Ledger) recordMilestones(ctx context.Context, habit *Habit, previous, next int) ([]Milestone, error) {
	if next <= previous {
		return nil, nil
	}
	// Only thresholds crossed by this transition can fire
	earned := make(map[int]bool)
	for _, t := range l.detector.Thresholds() {
		if t <= previous || t > next {
			continue
		}
		ok, err := l.milestones.Exists(ctx, habit.ID, MilestoneStreak, t)
		if err != nil {
			return nil, fmt.Errorf("failed to check milestone: %w", err)
		}
		earned[t] = ok
	}
	exists := func(value int) bool {
		return earned[value]
	}

	var created []Milestone
	for _, m := range l.detector.Detect(habit.ID, habit.UserID, previous, next, exists, time.Now().UTC()) {
		if err := l.milestones.Create(ctx, &m); err != nil {
			if errors.Is(err, ErrConflictIgnored) {
				continue
			}
			return created, fmt.Errorf("failed to record milestone: %w", err)
		}
		milestonesTotal.Inc()
		created = append(created, m)
	}
	return created, nil
}

// History walks the habit's records newest first, fetching pages lazily. The
// returned sequence can be ranged over more than once.
func (l *Ledger) History(ctx context.Context, habitID uuid.UUID, q HistoryQuery) iter.Seq2[CompletionRecord, error] {
	return func(yield func(CompletionRecord, error) bool) {
		var before *time.Time
		emitted := 0
		for {
			size := historyPageSize
			if q.Limit > 0 && q.Limit-emitted < size {
				size = q.Limit - emitted
			}
			if size <= 0 {
				return
			}
			page, err := l.records.Page(ctx, habitID, q, before, size)
			if err != nil {
				yield(CompletionRecord{}, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
				emitted++
			}
			if len(page) < size {
				return
			}
			last := page[len(page)-1].Date
			before = &last
		}
	}
}
