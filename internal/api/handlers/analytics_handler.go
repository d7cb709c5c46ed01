package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/dto"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/middleware"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/analytics"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AnalyticsHandler serves the aggregate and insight views
type AnalyticsHandler struct {
	service analytics.Service
	clock   habits.Clock
	log     *logger.Logger
}

func NewAnalyticsHandler(service analytics.Service, clock habits.Clock, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, clock: clock, log: log}
}

// view runs compute for the authenticated user and writes {"data": result}
func view[T any](h *AnalyticsHandler, compute func(c *gin.Context, userID uuid.UUID) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := middleware.GetUserID(c)
		if !exists {
			unauthorized(c)
			return
		}
		result, err := compute(c, userID)
		if errors.Is(err, errResponded) {
			return
		}
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// Weekly handles GET /api/analytics/weekly?date
func (h *AnalyticsHandler) Weekly() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.WeeklyView, error) {
		q, ok := bindQuery[dto.WeeklyQuery](c)
		if !ok {
			return nil, errResponded
		}
		anchor, err := optionalDate("date", q.Date)
		if err != nil {
			return nil, err
		}
		return h.service.Weekly(c.Request.Context(), userID, anchor)
	})
}

// Monthly handles GET /api/analytics/monthly?year&month
func (h *AnalyticsHandler) Monthly() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.MonthlyView, error) {
		q, ok := bindQuery[dto.MonthlyQuery](c)
		if !ok {
			return nil, errResponded
		}
		today := h.clock.Today()
		year, month := q.Year, time.Month(q.Month)
		if year == 0 {
			year = today.Year()
		}
		if month == 0 {
			month = today.Month()
		}
		return h.service.Monthly(c.Request.Context(), userID, year, month)
	})
}

// Heatmap handles GET /api/analytics/heatmap?year
func (h *AnalyticsHandler) Heatmap() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.HeatmapView, error) {
		q, ok := bindQuery[dto.HeatmapQuery](c)
		if !ok {
			return nil, errResponded
		}
		year := q.Year
		if year == 0 {
			year = h.clock.Today().Year()
		}
		return h.service.Heatmap(c.Request.Context(), userID, year)
	})
}

// Categories handles GET /api/analytics/categories
func (h *AnalyticsHandler) Categories() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.CategoryBreakdownView, error) {
		return h.service.Categories(c.Request.Context(), userID)
	})
}

// CompareWeeks handles GET /api/analytics/week-comparison
func (h *AnalyticsHandler) CompareWeeks() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.WeekComparison, error) {
		return h.service.CompareWeeks(c.Request.Context(), userID)
	})
}

// Productivity handles GET /api/analytics/productivity
func (h *AnalyticsHandler) Productivity() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.ProductivityScore, error) {
		return h.service.Productivity(c.Request.Context(), userID)
	})
}

// DayOfWeek handles GET /api/analytics/weekdays
func (h *AnalyticsHandler) DayOfWeek() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) (*analytics.DayOfWeekReport, error) {
		return h.service.DayOfWeek(c.Request.Context(), userID)
	})
}

// Correlations handles GET /api/analytics/correlations
func (h *AnalyticsHandler) Correlations() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) ([]analytics.Correlation, error) {
		result, err := h.service.Correlations(c.Request.Context(), userID)
		if result == nil && err == nil {
			result = []analytics.Correlation{}
		}
		return result, err
	})
}

// Predictions handles GET /api/analytics/predictions
func (h *AnalyticsHandler) Predictions() gin.HandlerFunc {
	return view(h, func(c *gin.Context, userID uuid.UUID) ([]analytics.Prediction, error) {
		result, err := h.service.Predictions(c.Request.Context(), userID)
		if result == nil && err == nil {
			result = []analytics.Prediction{}
		}
		return result, err
	})
}
