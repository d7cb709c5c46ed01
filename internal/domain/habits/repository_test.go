package habits

import (
	"context"
	"errors"
	"testing"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/persistence/connection"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) Repositories {
	t.Helper()
	db, err := connection.NewSQLiteDatabase("file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Habit{}, &CompletionRecord{}, &Milestone{}, &Activity{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewRepositories(db)
}

func TestLedgerRepositoryUpsertReplaces(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))

	v1, err := repos.Ledger.Upsert(ctx, &CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: today, Completed: true, Value: ptr(3.0), Notes: "first"})
	require.NoError(t, err)
	v2, err := repos.Ledger.Upsert(ctx, &CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: today, Completed: false})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)

	rec, err := repos.Ledger.Get(ctx, h.ID, today)
	require.NoError(t, err)
	assert.False(t, rec.Completed)
	assert.Nil(t, rec.Value)
	assert.Empty(t, rec.Notes)

	records, err := repos.Ledger.Query(ctx, h.ID, DateRange{})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = repos.Ledger.Get(ctx, h.ID, day(-1))
	assert.True(t, errors.Is(err, ErrRecordNotFound))

	_, err = repos.Ledger.Upsert(ctx, &CompletionRecord{HabitID: uuid.New(), UserID: h.UserID, Date: today})
	assert.Error(t, err)
}

func TestLedgerRepositoryDelete(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))
	_, err := repos.Ledger.Upsert(ctx, &CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: today, Completed: true})
	require.NoError(t, err)

	removed, version, err := repos.Ledger.Delete(ctx, h.ID, today)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(2), version)

	removed, version, err = repos.Ledger.Delete(ctx, h.ID, today)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, int64(3), version)
}

func TestLedgerRepositoryOrdering(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))
	for _, o := range []int{-3, 0, -9, -1, -5} {
		_, err := repos.Ledger.Upsert(ctx, &CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: day(o), Completed: true})
		require.NoError(t, err)
	}

	offsets := func(records []CompletionRecord) []int {
		out := make([]int, 0, len(records))
		for _, r := range records {
			out = append(out, DaysBetween(today, r.Date))
		}
		return out
	}

	asc, err := repos.Ledger.Query(ctx, h.ID, DateRange{})
	require.NoError(t, err)
	assert.Equal(t, []int{-9, -5, -3, -1, 0}, offsets(asc))

	from := day(-5)
	bounded, err := repos.Ledger.Query(ctx, h.ID, DateRange{From: &from})
	require.NoError(t, err)
	assert.Equal(t, []int{-5, -3, -1, 0}, offsets(bounded))

	page, err := repos.Ledger.Page(ctx, h.ID, HistoryQuery{}, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, -1}, offsets(page))

	before := page[len(page)-1].Date
	page, err = repos.Ledger.Page(ctx, h.ID, HistoryQuery{}, &before, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{-3, -5}, offsets(page))
}

func TestHabitRepositoryDerivedFields(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))

	applied, err := repos.Habits.UpdateDerivedFields(ctx, h.ID, StreakSnapshot{CurrentStreak: 4, LongestStreak: 6, TotalCompletions: 9, ComputedOn: today, Version: 5})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repos.Habits.UpdateDerivedFields(ctx, h.ID, StreakSnapshot{CurrentStreak: 1, LongestStreak: 1, ComputedOn: today, Version: 4})
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := repos.Habits.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.CurrentStreak)
	assert.Equal(t, 6, stored.LongestStreak)
	assert.Equal(t, int64(5), stored.DerivedVersion)

	// configuration updates leave derived columns alone
	stored.Title = "Read more"
	stored.CurrentStreak = 0
	require.NoError(t, repos.Habits.Update(ctx, stored))
	reloaded, err := repos.Habits.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read more", reloaded.Title)
	assert.Equal(t, 4, reloaded.CurrentStreak)

	_, err = repos.Habits.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrHabitNotFound))
}

func TestHabitRepositoryKeepsPauseHistory(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))

	stored, err := repos.Habits.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PastPauses)

	stored.PastPauses = append(stored.PastPauses, PauseWindow{From: day(-10), Until: day(-6)})
	stored.PausedAt, stored.PausedUntil = ptr(day(0)), ptr(day(5))
	require.NoError(t, repos.Habits.Update(ctx, stored))

	reloaded, err := repos.Habits.Get(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.PastPauses, 1)
	assert.Equal(t, FormatDate(day(-10)), FormatDate(reloaded.PastPauses[0].From))
	assert.Equal(t, FormatDate(day(-6)), FormatDate(reloaded.PastPauses[0].Until))
	assert.True(t, reloaded.InPauseWindow(day(-8)))
	assert.True(t, reloaded.InPauseWindow(day(3)))
	assert.False(t, reloaded.InPauseWindow(day(-3)))
}

func TestHabitRepositoryList(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	userID := uuid.New()

	for i, category := range []string{"health", "health", "learning"} {
		h := dailyHabit()
		h.UserID = userID
		h.Category = category
		h.CreatedAt = day(-10 + i)
		require.NoError(t, repos.Habits.Create(ctx, h))
	}
	archived := dailyHabit()
	archived.UserID = userID
	archived.IsArchived = true
	require.NoError(t, repos.Habits.Create(ctx, archived))
	require.NoError(t, repos.Habits.Create(ctx, dailyHabit()))

	tests := []struct {
		name   string
		filter HabitFilter
		count  int
		total  int64
	}{
		{"User habits without archived", HabitFilter{UserID: &userID}, 3, 3},
		{"Including archived", HabitFilter{UserID: &userID, IncludeArchived: true}, 4, 4},
		{"By category", HabitFilter{UserID: &userID, Category: ptr("health")}, 2, 2},
		{"Second page", HabitFilter{UserID: &userID, Page: 1, PageSize: 2}, 1, 3},
		{"Every user", HabitFilter{}, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			habits, total, err := repos.Habits.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, habits, tt.count)
			assert.Equal(t, tt.total, total)
		})
	}
}

func TestMilestoneRepositoryIgnoresDuplicates(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))

	m := Milestone{HabitID: h.ID, UserID: h.UserID, Type: MilestoneStreak, Value: 7, AchievedAt: today}
	require.NoError(t, repos.Milestones.Create(ctx, &m))

	dup := Milestone{HabitID: h.ID, UserID: h.UserID, Type: MilestoneStreak, Value: 7, AchievedAt: day(1)}
	err := repos.Milestones.Create(ctx, &dup)
	assert.True(t, errors.Is(err, ErrConflictIgnored))

	exists, err := repos.Milestones.Exists(ctx, h.ID, MilestoneStreak, 7)
	require.NoError(t, err)
	assert.True(t, exists)

	listed, err := repos.Milestones.List(ctx, h.UserID, &h.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, values(listed))
}

func TestLedgerOnSQLiteSkipsEarnedMilestones(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))
	ledger := NewLedger(repos, NewDetector([]int{2}), &FixedClock{Date: today}, nil)

	checkIn := func(offset int) *CheckInResult {
		res, err := ledger.CheckIn(ctx, CheckInInput{HabitID: h.ID, UserID: h.UserID, Date: day(offset), Completed: true})
		require.NoError(t, err)
		return res
	}
	checkIn(-1)
	assert.Equal(t, []int{2}, values(checkIn(0).Milestones))

	_, err := ledger.Undo(ctx, h.ID, h.UserID, day(-1))
	require.NoError(t, err)
	res := checkIn(-1)
	assert.Equal(t, 2, res.Snapshot.CurrentStreak)
	assert.Empty(t, res.Milestones)

	ok, err := repos.Milestones.Exists(ctx, h.ID, MilestoneStreak, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHabitRepositoryDeleteCascades(t *testing.T) {
	repos := setupSQLite(t)
	ctx := context.Background()
	h := dailyHabit()
	require.NoError(t, repos.Habits.Create(ctx, h))
	_, err := repos.Ledger.Upsert(ctx, &CompletionRecord{HabitID: h.ID, UserID: h.UserID, Date: today, Completed: true})
	require.NoError(t, err)
	require.NoError(t, repos.Activity.Record(ctx, &Activity{HabitID: h.ID, UserID: h.UserID, Action: ActionHabitCheckedIn}))

	require.NoError(t, repos.Habits.Delete(ctx, h.ID))
	assert.True(t, errors.Is(repos.Habits.Delete(ctx, h.ID), ErrHabitNotFound))

	records, err := repos.Ledger.Query(ctx, h.ID, DateRange{})
	require.NoError(t, err)
	assert.Empty(t, records)

	log, err := repos.Activity.List(ctx, ActivityFilter{UserID: h.UserID})
	require.NoError(t, err)
	assert.Empty(t, log)
}
