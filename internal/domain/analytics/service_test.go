package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/persistence/connection"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/persistence/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	sets []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]string)}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return "", errors.New("miss")
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets = append(c.sets, key)
	return nil
}

type serviceFixture struct {
	repos  habits.Repositories
	clock  *habits.FixedClock
	userID uuid.UUID
}

// setupSQLite returns gorm stores over a private in-memory database.
func setupSQLite(t *testing.T) habits.Repositories {
	t.Helper()
	db, err := connection.NewSQLiteDatabase("file::memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.AutoMigrate(db, zap.NewNop()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return habits.NewRepositories(db)
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	return &serviceFixture{
		repos:  setupSQLite(t),
		clock:  &habits.FixedClock{Date: today},
		userID: uuid.New(),
	}
}

func (f *serviceFixture) service(cache Cache, detector *habits.Detector) Service {
	return NewService(f.repos, detector, f.clock, cache, Config{TrendThreshold: 5, CacheTTL: time.Minute}, nil)
}

func (f *serviceFixture) habit(t *testing.T, userID uuid.UUID, offsets ...int) habits.Habit {
	t.Helper()
	ctx := context.Background()
	h := newHabit("Read", "")
	h.UserID = userID
	require.NoError(t, f.repos.Habits.Create(ctx, &h))
	for _, o := range offsets {
		f.record(t, h, o)
	}
	return h
}

func (f *serviceFixture) record(t *testing.T, h habits.Habit, offset int) {
	t.Helper()
	_, err := f.repos.Ledger.Upsert(context.Background(), &habits.CompletionRecord{
		HabitID:   h.ID,
		UserID:    h.UserID,
		Date:      day(offset),
		Completed: true,
	})
	require.NoError(t, err)
}

func TestServiceWeeklyIsCached(t *testing.T) {
	f := newServiceFixture(t)
	h := f.habit(t, f.userID, -2, -1)
	f.habit(t, uuid.New(), -2, -1, 0)

	cache := newMemoryCache()
	svc := f.service(cache, nil)
	ctx := context.Background()

	view, err := svc.Weekly(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalDue: 3, TotalCompleted: 2, Rate: 66.7}, view.Summary)
	assert.Equal(t, []string{fmt.Sprintf("analytics:%s:2024-03-20:weekly:2024-03-18", f.userID)}, cache.sets)

	f.record(t, h, 0)
	cached, err := svc.Weekly(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Equal(t, view, cached)

	fresh, err := f.service(nil, nil).Weekly(ctx, f.userID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Summary.TotalCompleted)
}

func TestServiceWeeklyAnchor(t *testing.T) {
	f := newServiceFixture(t)
	f.habit(t, f.userID, -9, -8)

	anchor := day(-7)
	view, err := f.service(nil, nil).Weekly(context.Background(), f.userID, &anchor)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11", view.WeekStart)
	assert.Equal(t, Summary{TotalDue: 7, TotalCompleted: 2, Rate: 28.6}, view.Summary)
}

func TestServiceMonthlyRejectsBadMonth(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.service(nil, nil).Monthly(context.Background(), f.userID, 2024, 13)
	assert.True(t, errors.Is(err, habits.ErrInvalidInput))
}

func TestServiceCanceled(t *testing.T) {
	f := newServiceFixture(t)
	f.habit(t, f.userID, -1)
	svc := f.service(newMemoryCache(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Productivity(ctx, f.userID)
	assert.True(t, IsCanceled(err))
	_, err = svc.Correlations(ctx, f.userID)
	assert.True(t, IsCanceled(err))
}

func TestServicePredictionsUseStoredMilestones(t *testing.T) {
	f := newServiceFixture(t)
	h := f.habit(t, f.userID, span(-10, -1)...)
	detector := habits.NewDetector([]int{7, 14})
	ctx := context.Background()

	got, err := f.service(nil, detector).Predictions(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 14, got[0].NextMilestone)

	require.NoError(t, f.repos.Milestones.Create(ctx, &habits.Milestone{
		HabitID:    h.ID,
		UserID:     f.userID,
		Type:       habits.MilestoneStreak,
		Value:      14,
		AchievedAt: day(-30),
	}))
	got, err = f.service(nil, detector).Predictions(ctx, f.userID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServiceSkipsArchivedHabits(t *testing.T) {
	f := newServiceFixture(t)
	f.habit(t, f.userID, span(-29, 0)...)
	archived := f.habit(t, f.userID)
	archived.IsArchived = true
	require.NoError(t, f.repos.Habits.Update(context.Background(), &archived))

	view, err := f.service(nil, nil).Categories(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, view.Habits, 1)
	assert.Equal(t, 100.0, view.Habits[0].Rate)
}

func TestCacheKeyPattern(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "analytics:"+id.String()+":*", CacheKeyPattern(id))
}
