package habits

import (
	"context"
	"errors"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/persistence/connection"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore persists completion records. Mutations return the habit's new ledger version.
type LedgerStore interface {
	Upsert(ctx context.Context, rec *CompletionRecord) (int64, error)
	Delete(ctx context.Context, habitID uuid.UUID, date time.Time) (bool, int64, error)
	Get(ctx context.Context, habitID uuid.UUID, date time.Time) (*CompletionRecord, error)
	// Query returns records in ascending date order.
	Query(ctx context.Context, habitID uuid.UUID, r DateRange) ([]CompletionRecord, error)
	// Page returns up to size records older than before (when set), newest first.
	Page(ctx context.Context, habitID uuid.UUID, q HistoryQuery, before *time.Time, size int) ([]CompletionRecord, error)
}

// HabitStore persists habit configuration and the cached derived fields.
type HabitStore interface {
	Create(ctx context.Context, habit *Habit) error
	Get(ctx context.Context, id uuid.UUID) (*Habit, error)
	List(ctx context.Context, filter HabitFilter) ([]Habit, int64, error)
	// Update writes configuration and lifecycle columns, never derived ones.
	Update(ctx context.Context, habit *Habit) error
	Delete(ctx context.Context, id uuid.UUID) error
	// UpdateDerivedFields applies snap unless a newer ledger version was already written.
	UpdateDerivedFields(ctx context.Context, habitID uuid.UUID, snap StreakSnapshot) (bool, error)
}

type MilestoneStore interface {
	Exists(ctx context.Context, habitID uuid.UUID, kind MilestoneType, value int) (bool, error)
	// Create returns ErrConflictIgnored when the milestone is already recorded.
	Create(ctx context.Context, m *Milestone) error
	List(ctx context.Context, userID uuid.UUID, habitID *uuid.UUID) ([]Milestone, error)
}

type ActivityStore interface {
	Record(ctx context.Context, a *Activity) error
	List(ctx context.Context, filter ActivityFilter) ([]Activity, error)
}

// Repositories groups the gorm-backed stores.
type Repositories struct {
	Habits     HabitStore
	Ledger     LedgerStore
	Milestones MilestoneStore
	Activity   ActivityStore
}

func NewRepositories(db *connection.Database) Repositories {
	return Repositories{
		Habits:     &habitRepository{db: db},
		Ledger:     &ledgerRepository{db: db},
		Milestones: &milestoneRepository{db: db},
		Activity:   &activityRepository{db: db},
	}
}

type habitRepository struct {
	db *connection.Database
}

var configColumns = []string{
	"title", "description", "category", "frequency", "habit_type", "target_value",
	"unit", "days_of_week", "times_per_week", "is_active", "is_archived",
	"paused_at", "paused_until", "past_pauses", "updated_at",
}

func (r *habitRepository) Create(ctx context.Context, habit *Habit) error {
	return r.db.WithContext(ctx).Create(habit).Error
}

func (r *habitRepository) Get(ctx context.Context, id uuid.UUID) (*Habit, error) {
	var habit Habit
	result := r.db.WithContext(ctx).First(&habit, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, result.Error
	}
	return &habit, nil
}

func (r *habitRepository) List(ctx context.Context, filter HabitFilter) ([]Habit, int64, error) {
	var habits []Habit
	var total int64
	query := r.db.WithContext(ctx).Model(&Habit{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if !filter.IncludeArchived {
		query = query.Where("is_archived = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize == 0 {
		filter.PageSize = 10000
	}

	err := query.Order("created_at ASC").Order("id ASC").
		Offset(filter.Page * filter.PageSize).
		Limit(filter.PageSize).
		Find(&habits).Error
	if err != nil {
		return nil, 0, err
	}
	return habits, total, nil
}

func (r *habitRepository) Update(ctx context.Context, habit *Habit) error {
	result := r.db.WithContext(ctx).Model(habit).Select(configColumns).Updates(habit)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHabitNotFound
	}
	return nil
}

func (r *habitRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&Habit{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrHabitNotFound
		}
		if err := tx.Delete(&CompletionRecord{}, "habit_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&Milestone{}, "habit_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Activity{}, "habit_id = ?", id).Error
	})
}

func (r *habitRepository) UpdateDerivedFields(ctx context.Context, habitID uuid.UUID, snap StreakSnapshot) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Habit{}).
		Where("id = ? AND derived_version <= ?", habitID, snap.Version).
		UpdateColumns(map[string]interface{}{
			"current_streak":     snap.CurrentStreak,
			"longest_streak":     snap.LongestStreak,
			"total_completions":  snap.TotalCompletions,
			"last_completed_at":  snap.LastCompletedAt,
			"streak_start_date":  snap.StreakStartDate,
			"streak_computed_on": snap.ComputedOn,
			"derived_version":    snap.Version,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

type ledgerRepository struct {
	db *connection.Database
}

func (r *ledgerRepository) Upsert(ctx context.Context, rec *CompletionRecord) (int64, error) {
	var version int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		rec.UpdatedAt = now
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		// Every column but created_at is replaced so a re-check-in never merges
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "habit_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "completed", "value", "notes", "updated_at"}),
		}).Create(rec).Error
		if err != nil {
			return err
		}
		version, err = bumpLedgerVersion(tx, rec.HabitID)
		return err
	})
	return version, err
}

func (r *ledgerRepository) Delete(ctx context.Context, habitID uuid.UUID, date time.Time) (bool, int64, error) {
	var removed bool
	var version int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("habit_id = ? AND date = ?", habitID, Day(date)).Delete(&CompletionRecord{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected > 0
		var err error
		version, err = bumpLedgerVersion(tx, habitID)
		return err
	})
	return removed, version, err
}

func bumpLedgerVersion(tx *gorm.DB, habitID uuid.UUID) (int64, error) {
	result := tx.Model(&Habit{}).Where("id = ?", habitID).
		UpdateColumn("ledger_version", gorm.Expr("ledger_version + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrHabitNotFound
	}
	var version int64
	if err := tx.Model(&Habit{}).Select("ledger_version").Where("id = ?", habitID).Row().Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (r *ledgerRepository) Get(ctx context.Context, habitID uuid.UUID, date time.Time) (*CompletionRecord, error) {
	var rec CompletionRecord
	err := r.db.WithContext(ctx).Where("habit_id = ? AND date = ?", habitID, Day(date)).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *ledgerRepository) Query(ctx context.Context, habitID uuid.UUID, dr DateRange) ([]CompletionRecord, error) {
	var records []CompletionRecord
	query := r.db.WithContext(ctx).Where("habit_id = ?", habitID)
	if dr.From != nil {
		query = query.Where("date >= ?", Day(*dr.From))
	}
	if dr.To != nil {
		query = query.Where("date <= ?", Day(*dr.To))
	}
	if err := query.Order("date ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ledgerRepository) Page(ctx context.Context, habitID uuid.UUID, q HistoryQuery, before *time.Time, size int) ([]CompletionRecord, error) {
	var records []CompletionRecord
	query := r.db.WithContext(ctx).Where("habit_id = ?", habitID)
	if q.From != nil {
		query = query.Where("date >= ?", Day(*q.From))
	}
	if q.To != nil {
		query = query.Where("date <= ?", Day(*q.To))
	}
	if before != nil {
		query = query.Where("date < ?", Day(*before))
	}
	if err := query.Order("date DESC").Limit(size).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

type milestoneRepository struct {
	db *connection.Database
}

func (r *milestoneRepository) Exists(ctx context.Context, habitID uuid.UUID, kind MilestoneType, value int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Milestone{}).
		Where("habit_id = ? AND type = ? AND value = ?", habitID, kind, value).
		Count(&count).Error
	return count > 0, err
}

func (r *milestoneRepository) Create(ctx context.Context, m *Milestone) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflictIgnored
	}
	return nil
}

func (r *milestoneRepository) List(ctx context.Context, userID uuid.UUID, habitID *uuid.UUID) ([]Milestone, error) {
	var milestones []Milestone
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if habitID != nil {
		query = query.Where("habit_id = ?", *habitID)
	}
	if err := query.Order("achieved_at ASC").Order("value ASC").Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

type activityRepository struct {
	db *connection.Database
}

func (r *activityRepository) Record(ctx context.Context, a *Activity) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]Activity, error) {
	var entries []Activity
	query := r.db.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.HabitID != nil {
		query = query.Where("habit_id = ?", *filter.HabitID)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.Since != nil {
		query = query.Where("timestamp >= ?", *filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if err := query.Order("timestamp DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
