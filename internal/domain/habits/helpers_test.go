package habits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// today is a Wednesday.
var today = time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return AddDays(today, offset)
}

func ptr[T any](v T) *T {
	return &v
}

func dailyHabit() *Habit {
	return &Habit{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Title:     "Read",
		Frequency: FrequencyDaily,
		HabitType: HabitTypeBoolean,
		IsActive:  true,
		CreatedAt: day(-400),
	}
}

// completions builds completed records for h on the given day offsets.
func completions(h *Habit, offsets ...int) []CompletionRecord {
	out := make([]CompletionRecord, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: day(o), Completed: true})
	}
	return out
}

func onDates(h *Habit, dates ...time.Time) []CompletionRecord {
	out := make([]CompletionRecord, 0, len(dates))
	for _, d := range dates {
		out = append(out, CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: Day(d), Completed: true})
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.HabitEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event *events.HabitEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	repos     Repositories
	clock     *FixedClock
	publisher *recordingPublisher
	svc       Service
	ledger    *Ledger
	userID    uuid.UUID
}

func newFixture(t *testing.T, thresholds ...int) *fixture {
	t.Helper()
	f := &fixture{
		repos:     newMemoryRepositories(),
		clock:     &FixedClock{Date: today},
		publisher: &recordingPublisher{},
		userID:    uuid.New(),
	}
	detector := NewDetector(thresholds)
	f.svc = NewService(f.repos, detector, f.clock, f.publisher, nil)
	f.ledger = NewLedger(f.repos, detector, f.clock, nil)
	return f
}

// habit stores h for the fixture user, created long before today.
func (f *fixture) habit(t *testing.T, h *Habit) *Habit {
	t.Helper()
	h.UserID = f.userID
	if h.CreatedAt.IsZero() {
		h.CreatedAt = day(-400)
	}
	h.IsActive = true
	require.NoError(t, ValidateHabit(h))
	require.NoError(t, f.repos.Habits.Create(context.Background(), h))
	return h
}

func (f *fixture) checkIn(t *testing.T, habitID uuid.UUID, offset int) *CheckInResult {
	t.Helper()
	res, err := f.svc.CheckIn(context.Background(), CheckInInput{
		HabitID:   habitID,
		UserID:    f.userID,
		Date:      day(offset),
		Completed: true,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *Habit {
	t.Helper()
	h, err := f.repos.Habits.Get(context.Background(), id)
	require.NoError(t, err)
	return h
}
