package routes

import (
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/dto"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/handlers"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

type AnalyticsRoutes struct {
	handler *handlers.AnalyticsHandler
	guard   Guard
}

func NewAnalyticsRoutes(handler *handlers.AnalyticsHandler, guard Guard) *AnalyticsRoutes {
	return &AnalyticsRoutes{handler: handler, guard: guard}
}

// RegisterRoutes registers the read-only analytics views
func (a *AnalyticsRoutes) RegisterRoutes(router *gin.Engine) {
	validation := middleware.NewValidationMiddleware(a.guard.Log)

	analytics := router.Group("/api/analytics")
	analytics.Use(a.guard.handlers()...)
	analytics.Use(newCircuitBreaker(a.guard.Log).CircuitBreakerMiddleware())
	// Views such as the yearly heatmap are large
	analytics.Use(gzip.Gzip(gzip.DefaultCompression))

	analytics.GET("/weekly", validation.ValidateQuery(&dto.WeeklyQuery{}), a.handler.Weekly())
	analytics.GET("/monthly", validation.ValidateQuery(&dto.MonthlyQuery{}), a.handler.Monthly())
	analytics.GET("/heatmap", validation.ValidateQuery(&dto.HeatmapQuery{}), a.handler.Heatmap())
	analytics.GET("/categories", a.handler.Categories())
	analytics.GET("/week-comparison", a.handler.CompareWeeks())
	analytics.GET("/productivity", a.handler.Productivity())
	analytics.GET("/weekdays", a.handler.DayOfWeek())
	analytics.GET("/correlations", a.handler.Correlations())
	analytics.GET("/predictions", a.handler.Predictions())
}
