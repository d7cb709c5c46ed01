package habits

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// newMemoryRepositories returns stores backed by process memory. Each store
// guards its maps with a RWMutex; records are copied in and out so callers
// never share a record with the store.
func newMemoryRepositories() Repositories {
	m := &memoryStore{
		habits:     make(map[uuid.UUID]Habit),
		records:    make(map[uuid.UUID]map[int64]CompletionRecord),
		milestones: make(map[milestoneKey]Milestone),
	}
	return Repositories{
		Habits:     (*memoryHabits)(m),
		Ledger:     (*memoryLedger)(m),
		Milestones: (*memoryMilestones)(m),
		Activity:   (*memoryActivity)(m),
	}
}

type milestoneKey struct {
	habitID uuid.UUID
	kind    MilestoneType
	value   int
}

type memoryStore struct {
	mu         sync.RWMutex
	habits     map[uuid.UUID]Habit
	records    map[uuid.UUID]map[int64]CompletionRecord
	milestones map[milestoneKey]Milestone
	activity   []Activity
}

type memoryHabits memoryStore

func (s *memoryHabits) Create(ctx context.Context, habit *Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if habit.ID == uuid.Nil {
		habit.ID = uuid.New()
	}
	now := time.Now().UTC()
	if habit.CreatedAt.IsZero() {
		habit.CreatedAt = now
	}
	habit.UpdatedAt = now
	s.habits[habit.ID] = *habit
	return nil
}

func (s *memoryHabits) Get(ctx context.Context, id uuid.UUID) (*Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.habits[id]
	if !ok {
		return nil, ErrHabitNotFound
	}
	return &h, nil
}

func (s *memoryHabits) List(ctx context.Context, filter HabitFilter) ([]Habit, int64, error) {
	s.mu.RLock()
	var out []Habit
	for _, h := range s.habits {
		if filter.UserID != nil && h.UserID != *filter.UserID {
			continue
		}
		if filter.Category != nil && h.Category != *filter.Category {
			continue
		}
		if !filter.IncludeArchived && h.IsArchived {
			continue
		}
		out = append(out, h)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	total := int64(len(out))

	if filter.PageSize > 0 {
		start := filter.Page * filter.PageSize
		if start >= len(out) {
			return []Habit{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (s *memoryHabits) Update(ctx context.Context, habit *Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.habits[habit.ID]
	if !ok {
		return ErrHabitNotFound
	}
	stored.Title = habit.Title
	stored.Description = habit.Description
	stored.Category = habit.Category
	stored.Frequency = habit.Frequency
	stored.HabitType = habit.HabitType
	stored.TargetValue = habit.TargetValue
	stored.Unit = habit.Unit
	stored.DaysOfWeek = habit.DaysOfWeek
	stored.TimesPerWeek = habit.TimesPerWeek
	stored.IsActive = habit.IsActive
	stored.IsArchived = habit.IsArchived
	stored.PausedAt = habit.PausedAt
	stored.PausedUntil = habit.PausedUntil
	stored.PastPauses = append(datatypes.JSONSlice[PauseWindow](nil), habit.PastPauses...)
	stored.UpdatedAt = time.Now().UTC()
	s.habits[habit.ID] = stored
	return nil
}

func (s *memoryHabits) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.habits[id]; !ok {
		return ErrHabitNotFound
	}
	delete(s.habits, id)
	delete(s.records, id)
	for k := range s.milestones {
		if k.habitID == id {
			delete(s.milestones, k)
		}
	}
	kept := s.activity[:0]
	for _, a := range s.activity {
		if a.HabitID != id {
			kept = append(kept, a)
		}
	}
	s.activity = kept
	return nil
}

func (s *memoryHabits) UpdateDerivedFields(ctx context.Context, habitID uuid.UUID, snap StreakSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[habitID]
	if !ok || h.DerivedVersion > snap.Version {
		return false, nil
	}
	h.applySnapshot(snap)
	s.habits[habitID] = h
	return true, nil
}

type memoryLedger memoryStore

// bump increments the habit's ledger version. Callers hold the write lock.
func (s *memoryLedger) bump(habitID uuid.UUID) (int64, error) {
	h, ok := s.habits[habitID]
	if !ok {
		return 0, ErrHabitNotFound
	}
	h.LedgerVersion++
	s.habits[habitID] = h
	return h.LedgerVersion, nil
}

func (s *memoryLedger) Upsert(ctx context.Context, rec *CompletionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, err := s.bump(rec.HabitID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	rec.Date = Day(rec.Date)
	rec.UpdatedAt = now
	day := DayNumber(rec.Date)
	byDay := s.records[rec.HabitID]
	if byDay == nil {
		byDay = make(map[int64]CompletionRecord)
		s.records[rec.HabitID] = byDay
	}
	if prior, ok := byDay[day]; ok {
		rec.CreatedAt = prior.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	stored := *rec
	if rec.Value != nil {
		v := *rec.Value
		stored.Value = &v
	}
	byDay[day] = stored
	return version, nil
}

func (s *memoryLedger) Delete(ctx context.Context, habitID uuid.UUID, date time.Time) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, err := s.bump(habitID)
	if err != nil {
		return false, 0, err
	}
	day := DayNumber(date)
	_, removed := s.records[habitID][day]
	delete(s.records[habitID], day)
	return removed, version, nil
}

func (s *memoryLedger) Get(ctx context.Context, habitID uuid.UUID, date time.Time) (*CompletionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[habitID][DayNumber(date)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (s *memoryLedger) sorted(habitID uuid.UUID, from, to *time.Time) []CompletionRecord {
	s.mu.RLock()
	out := make([]CompletionRecord, 0, len(s.records[habitID]))
	for _, rec := range s.records[habitID] {
		if from != nil && rec.Date.Before(Day(*from)) {
			continue
		}
		if to != nil && rec.Date.After(Day(*to)) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (s *memoryLedger) Query(ctx context.Context, habitID uuid.UUID, r DateRange) ([]CompletionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.sorted(habitID, r.From, r.To), nil
}

func (s *memoryLedger) Page(ctx context.Context, habitID uuid.UUID, q HistoryQuery, before *time.Time, size int) ([]CompletionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	to := q.To
	if before != nil {
		prev := AddDays(*before, -1)
		if to == nil || prev.Before(Day(*to)) {
			to = &prev
		}
	}
	asc := s.sorted(habitID, q.From, to)
	out := make([]CompletionRecord, 0, size)
	for i := len(asc) - 1; i >= 0 && len(out) < size; i-- {
		out = append(out, asc[i])
	}
	return out, nil
}

type memoryMilestones memoryStore

func (s *memoryMilestones) Exists(ctx context.Context, habitID uuid.UUID, kind MilestoneType, value int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.milestones[milestoneKey{habitID, kind, value}]
	return ok, nil
}

func (s *memoryMilestones) Create(ctx context.Context, m *Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := milestoneKey{m.HabitID, m.Type, m.Value}
	if _, ok := s.milestones[key]; ok {
		return ErrConflictIgnored
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	s.milestones[key] = *m
	return nil
}

func (s *memoryMilestones) List(ctx context.Context, userID uuid.UUID, habitID *uuid.UUID) ([]Milestone, error) {
	s.mu.RLock()
	out := []Milestone{}
	for _, m := range s.milestones {
		if m.UserID != userID || (habitID != nil && m.HabitID != *habitID) {
			continue
		}
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AchievedAt.Equal(out[j].AchievedAt) {
			return out[i].AchievedAt.Before(out[j].AchievedAt)
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

type memoryActivity memoryStore

func (s *memoryActivity) Record(ctx context.Context, a *Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	s.activity = append(s.activity, *a)
	return nil
}

func (s *memoryActivity) List(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	out := []Activity{}
	for i := len(s.activity) - 1; i >= 0 && len(out) < limit; i-- {
		a := s.activity[i]
		if a.UserID != filter.UserID {
			continue
		}
		if filter.HabitID != nil && a.HabitID != *filter.HabitID {
			continue
		}
		if filter.Action != nil && a.Action != *filter.Action {
			continue
		}
		if filter.Since != nil && a.Timestamp.Before(*filter.Since) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
