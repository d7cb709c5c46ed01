package handlers

import (
	"encoding/json"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/dto"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
)

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := habits.FormatDate(*t)
	return &s
}

// HabitToResponse maps a habit; today decides whether it is currently paused
func HabitToResponse(h *habits.Habit, today time.Time) *dto.HabitResponse {
	if h == nil {
		return nil
	}
	resp := &dto.HabitResponse{
		ID:               h.ID,
		UserID:           h.UserID,
		Title:            h.Title,
		Description:      h.Description,
		Category:         h.Category,
		Frequency:        string(h.Frequency),
		HabitType:        string(h.HabitType),
		TargetValue:      h.TargetValue,
		Unit:             h.Unit,
		DaysOfWeek:       h.DaysOfWeek.Days(),
		TimesPerWeek:     h.TimesPerWeek,
		Granularity:      string(h.Granularity()),
		IsActive:         h.IsActive,
		IsArchived:       h.IsArchived,
		IsPaused:         h.IsPaused(today),
		CurrentStreak:    h.CurrentStreak,
		LongestStreak:    h.LongestStreak,
		TotalCompletions: h.TotalCompletions,
		LastCompletedAt:  formatDate(h.LastCompletedAt),
		StreakStartDate:  formatDate(h.StreakStartDate),
		CreatedAt:        h.CreatedAt,
		UpdatedAt:        h.UpdatedAt,
	}
	if resp.IsPaused {
		resp.PausedUntil = formatDate(h.PausedUntil)
	}
	return resp
}

func CompletionToResponse(r *habits.CompletionRecord) *dto.CompletionResponse {
	if r == nil {
		return nil
	}
	return &dto.CompletionResponse{
		HabitID:   r.HabitID,
		Date:      habits.FormatDate(r.Date),
		Completed: r.Completed,
		Value:     r.Value,
		Notes:     r.Notes,
		UpdatedAt: r.UpdatedAt,
	}
}

func SnapshotToResponse(s habits.StreakSnapshot) dto.StreakResponse {
	return dto.StreakResponse{
		CurrentStreak:    s.CurrentStreak,
		LongestStreak:    s.LongestStreak,
		TotalCompletions: s.TotalCompletions,
		LastCompletedAt:  formatDate(s.LastCompletedAt),
		StreakStartDate:  formatDate(s.StreakStartDate),
	}
}

func MilestonesToResponse(ms []habits.Milestone) []*dto.MilestoneResponse {
	resp := make([]*dto.MilestoneResponse, len(ms))
	for i, m := range ms {
		resp[i] = &dto.MilestoneResponse{
			ID:         m.ID,
			HabitID:    m.HabitID,
			Type:       string(m.Type),
			Value:      m.Value,
			AchievedAt: m.AchievedAt,
		}
	}
	return resp
}

func CheckInToResponse(r *habits.CheckInResult) *dto.CheckInResponse {
	return &dto.CheckInResponse{
		Record:     CompletionToResponse(&r.Record),
		Streak:     SnapshotToResponse(r.Snapshot),
		Milestones: MilestonesToResponse(r.Milestones),
		Frozen:     r.Frozen,
	}
}

func StreakRunsToResponse(runs []habits.StreakRun) []dto.StreakRunResponse {
	resp := make([]dto.StreakRunResponse, len(runs))
	for i, r := range runs {
		resp[i] = dto.StreakRunResponse{
			Start:   habits.FormatDate(r.Start),
			End:     habits.FormatDate(r.End),
			Length:  r.Length,
			Current: r.Current,
		}
	}
	return resp
}

func ActivityToResponse(a *habits.Activity) *dto.ActivityResponse {
	resp := &dto.ActivityResponse{
		ID:        a.ID,
		HabitID:   a.HabitID,
		Action:    a.Action,
		Timestamp: a.Timestamp,
	}
	if len(a.Metadata) > 0 {
		var metadata map[string]interface{}
		if err := json.Unmarshal(a.Metadata, &metadata); err == nil {
			resp.Metadata = metadata
		}
	}
	return resp
}
