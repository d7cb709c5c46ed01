package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/dto"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/middleware"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultHistoryLimit  = 100
	defaultActivityLimit = 50
	maxPageSize          = 100
)

// HabitsHandler handles HTTP requests for habits operations
type HabitsHandler struct {
	service habits.Service
	clock   habits.Clock
	log     *logger.Logger
}

// NewHabitsHandler creates a new HabitsHandler instance
func NewHabitsHandler(service habits.Service, clock habits.Clock, log *logger.Logger) *HabitsHandler {
	return &HabitsHandler{service: service, clock: clock, log: log}
}

// bindBody returns the body validated by middleware, or binds it directly
func bindBody[T any](c *gin.Context) (*T, bool) {
	if req, ok := middleware.ValidatedModel[T](c); ok {
		return req, true
	}
	req := new(T)
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		c.Abort()
		return nil, false
	}
	return req, true
}

func bindQuery[T any](c *gin.Context) (*T, bool) {
	if q, ok := middleware.ValidatedQuery[T](c); ok {
		return q, true
	}
	q := new(T)
	if err := c.ShouldBindQuery(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		c.Abort()
		return nil, false
	}
	return q, true
}

// habitScope resolves the caller and the :id path parameter
func habitScope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		unauthorized(c)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id", "invalid habit ID")
		return uuid.Nil, uuid.Nil, false
	}
	return id, userID, true
}

func optionalDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := habits.ParseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateHabit handles POST /api/habits
func (h *HabitsHandler) CreateHabit(c *gin.Context) {
	req, ok := bindBody[dto.CreateHabitRequest](c)
	if !ok {
		return
	}
	userID, exists := middleware.GetUserID(c)
	if !exists {
		unauthorized(c)
		return
	}

	input := habits.CreateHabitInput{
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Frequency:    habits.Frequency(req.Frequency),
		HabitType:    habits.HabitType(req.HabitType),
		TargetValue:  req.TargetValue,
		Unit:         req.Unit,
		DaysOfWeek:   req.DaysOfWeek,
		TimesPerWeek: req.TimesPerWeek,
	}
	if input.Frequency == "" {
		input.Frequency = habits.FrequencyDaily
	}
	if input.HabitType == "" {
		input.HabitType = habits.HabitTypeBoolean
	}

	habit, err := h.service.CreateHabit(c.Request.Context(), input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": HabitToResponse(habit, h.clock.Today())})
}

// GetHabit handles GET /api/habits/:id
func (h *HabitsHandler) GetHabit(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	habit, err := h.service.GetHabit(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": HabitToResponse(habit, h.clock.Today())})
}

// ListHabits handles GET /api/habits?page&page_size&category&include_archived
func (h *HabitsHandler) ListHabits(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		unauthorized(c)
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		badRequest(c, "page", "invalid page number")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		badRequest(c, "page_size", "page_size must be between 1 and 100")
		return
	}

	filter := habits.HabitFilter{
		UserID:          &userID,
		IncludeArchived: c.Query("include_archived") == "true",
		Page:            page,
		PageSize:        pageSize,
	}
	if category := c.Query("category"); category != "" {
		filter.Category = &category
	}

	list, total, err := h.service.ListHabits(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	today := h.clock.Today()
	resp := dto.HabitListResponse{
		Habits:     make([]*dto.HabitResponse, len(list)),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}
	for i := range list {
		resp.Habits[i] = HabitToResponse(&list[i], today)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateHabit handles PUT /api/habits/:id
func (h *HabitsHandler) UpdateHabit(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	req, ok := bindBody[dto.UpdateHabitRequest](c)
	if !ok {
		return
	}

	input := habits.UpdateHabitInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		TargetValue:  req.TargetValue,
		Unit:         req.Unit,
		DaysOfWeek:   req.DaysOfWeek,
		TimesPerWeek: req.TimesPerWeek,
		ClearTarget:  req.ClearTarget,
		ClearQuota:   req.ClearQuota,
	}
	if req.Frequency != nil {
		f := habits.Frequency(*req.Frequency)
		input.Frequency = &f
	}
	if req.HabitType != nil {
		t := habits.HabitType(*req.HabitType)
		input.HabitType = &t
	}

	habit, err := h.service.UpdateHabit(c.Request.Context(), id, userID, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": HabitToResponse(habit, h.clock.Today())})
}

// DeleteHabit handles DELETE /api/habits/:id
func (h *HabitsHandler) DeleteHabit(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	if err := h.service.DeleteHabit(c.Request.Context(), id, userID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// lifecycle wraps the archive and resume style operations that take no body
func (h *HabitsHandler) lifecycle(op func(c *gin.Context, id, userID uuid.UUID) (*habits.Habit, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, userID, ok := habitScope(c)
		if !ok {
			return
		}
		habit, err := op(c, id, userID)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": HabitToResponse(habit, h.clock.Today())})
	}
}

// ArchiveHabit handles POST /api/habits/:id/archive
func (h *HabitsHandler) ArchiveHabit(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, id, userID uuid.UUID) (*habits.Habit, error) {
		return h.service.ArchiveHabit(c.Request.Context(), id, userID)
	})(c)
}

// UnarchiveHabit handles POST /api/habits/:id/unarchive
func (h *HabitsHandler) UnarchiveHabit(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, id, userID uuid.UUID) (*habits.Habit, error) {
		return h.service.UnarchiveHabit(c.Request.Context(), id, userID)
	})(c)
}

// ResumeHabit handles POST /api/habits/:id/resume
func (h *HabitsHandler) ResumeHabit(c *gin.Context) {
	h.lifecycle(func(c *gin.Context, id, userID uuid.UUID) (*habits.Habit, error) {
		return h.service.ResumeHabit(c.Request.Context(), id, userID)
	})(c)
}

// PauseHabit handles POST /api/habits/:id/pause
func (h *HabitsHandler) PauseHabit(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	req, ok := bindBody[dto.PauseHabitRequest](c)
	if !ok {
		return
	}
	until, err := habits.ParseDate("until", req.Until)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	habit, err := h.service.PauseHabit(c.Request.Context(), id, userID, until)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": HabitToResponse(habit, h.clock.Today())})
}

// CheckIn handles POST /api/habits/:id/check-ins
func (h *HabitsHandler) CheckIn(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	req, ok := bindBody[dto.CheckInRequest](c)
	if !ok {
		return
	}

	date := h.clock.Today()
	if req.Date != "" {
		d, err := habits.ParseDate("date", req.Date)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		date = d
	}

	// A bare value counts as a completion attempt; the target decides whether it qualifies
	completed := req.Value != nil || req.Completed == nil
	if req.Completed != nil {
		completed = *req.Completed
	}

	result, err := h.service.CheckIn(c.Request.Context(), habits.CheckInInput{
		HabitID:   id,
		UserID:    userID,
		Date:      date,
		Completed: completed,
		Value:     req.Value,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": CheckInToResponse(result)})
}

// UndoCheckIn handles DELETE /api/habits/:id/check-ins/:date
func (h *HabitsHandler) UndoCheckIn(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	date, err := habits.ParseDate("date", c.Param("date"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.service.Undo(c.Request.Context(), id, userID, date)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.UndoResponse{
		Removed: result.Removed,
		Streak:  SnapshotToResponse(result.Snapshot),
		Frozen:  result.Frozen,
	}})
}

// ListCheckIns handles GET /api/habits/:id/check-ins?from&to&limit, newest first
func (h *HabitsHandler) ListCheckIns(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	q, ok := bindQuery[dto.HistoryQuery](c)
	if !ok {
		return
	}

	query := habits.HistoryQuery{Limit: q.Limit}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}
	var err error
	if query.From, err = optionalDate("from", q.From); err != nil {
		respondError(c, h.log, err)
		return
	}
	if query.To, err = optionalDate("to", q.To); err != nil {
		respondError(c, h.log, err)
		return
	}

	history, err := h.service.History(c.Request.Context(), id, userID, query)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	records := make([]*dto.CompletionResponse, 0, query.Limit)
	for rec, err := range history {
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		records = append(records, CompletionToResponse(&rec))
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// ListHabitMilestones handles GET /api/habits/:id/milestones
func (h *HabitsHandler) ListHabitMilestones(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	milestones, err := h.service.ListMilestones(c.Request.Context(), userID, &id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": MilestonesToResponse(milestones)})
}

// ListMilestones handles GET /api/habits/milestones
func (h *HabitsHandler) ListMilestones(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		unauthorized(c)
		return
	}
	milestones, err := h.service.ListMilestones(c.Request.Context(), userID, nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": MilestonesToResponse(milestones)})
}

// GetStreakHistory handles GET /api/habits/:id/streaks
func (h *HabitsHandler) GetStreakHistory(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	runs, err := h.service.StreakHistory(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": StreakRunsToResponse(runs)})
}

// GetHabitActivity handles GET /api/habits/:id/activity?action&since&limit
func (h *HabitsHandler) GetHabitActivity(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	q, ok := bindQuery[dto.ActivityQuery](c)
	if !ok {
		return
	}

	filter := habits.ActivityFilter{UserID: userID, HabitID: &id, Limit: q.Limit}
	if filter.Limit == 0 {
		filter.Limit = defaultActivityLimit
	}
	if q.Action != "" {
		filter.Action = &q.Action
	}
	since, err := optionalDate("since", q.Since)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	filter.Since = since

	entries, err := h.service.Activity(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	resp := make([]*dto.ActivityResponse, len(entries))
	for i := range entries {
		resp[i] = ActivityToResponse(&entries[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetHabitsDueToday handles GET /api/habits/due-today
func (h *HabitsHandler) GetHabitsDueToday(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		unauthorized(c)
		return
	}
	due, err := h.service.HabitsDueToday(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	today := h.clock.Today()
	resp := make([]*dto.DueHabitResponse, len(due))
	for i := range due {
		resp[i] = &dto.DueHabitResponse{
			Habit:          HabitToResponse(&due[i].Habit, today),
			CompletedToday: due[i].CompletedToday,
			Remaining:      due[i].Remaining,
		}
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// VerifyHabit handles GET /api/habits/:id/verify
func (h *HabitsHandler) VerifyHabit(c *gin.Context) {
	id, userID, ok := habitScope(c)
	if !ok {
		return
	}
	v, err := h.service.VerifyDerivedFields(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.VerificationResponse{
		Cached:     SnapshotToResponse(v.Cached),
		Recomputed: SnapshotToResponse(v.Recomputed),
		Consistent: v.Consistent,
		Frozen:     v.Frozen,
	}})
}
