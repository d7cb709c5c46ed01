package routes

import (
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/dto"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/handlers"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/middleware"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/config"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/security/auth"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Guard carries what every authenticated group needs
type Guard struct {
	Auth    config.AuthConfig
	Limiter auth.RateLimiter // optional
	Log     *logger.Logger
}

// handlers returns the auth and rate limiting middleware, in that order
func (g Guard) handlers() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{middleware.NewAuthMiddleware(g.Auth.JWTSecret, g.Auth.JWTIssuer, g.Log)}
	if g.Limiter != nil {
		chain = append(chain, middleware.RateLimitMiddleware(g.Limiter, g.Log))
	}
	return chain
}

func newCircuitBreaker(log *logger.Logger) *middleware.CircuitBreaker {
	return middleware.NewCircuitBreaker(middleware.CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 5,
	}, log)
}

type HabitsRoutes struct {
	handler *handlers.HabitsHandler
	guard   Guard
}

func NewHabitsRoutes(handler *handlers.HabitsHandler, guard Guard) *HabitsRoutes {
	return &HabitsRoutes{handler: handler, guard: guard}
}

// RegisterRoutes registers all habit-related routes
func (h *HabitsRoutes) RegisterRoutes(router *gin.Engine) {
	validation := middleware.NewValidationMiddleware(h.guard.Log)
	compress := gzip.Gzip(gzip.DefaultCompression)

	habits := router.Group("/api/habits")
	habits.Use(h.guard.handlers()...)
	habits.Use(newCircuitBreaker(h.guard.Log).CircuitBreakerMiddleware())

	// Static paths before :id
	habits.GET("", compress, h.handler.ListHabits)
	habits.POST("", validation.ValidateRequest(&dto.CreateHabitRequest{}), h.handler.CreateHabit)
	habits.GET("/due-today", h.handler.GetHabitsDueToday)
	habits.GET("/milestones", h.handler.ListMilestones)

	habits.GET("/:id", h.handler.GetHabit)
	habits.PUT("/:id", validation.ValidateRequest(&dto.UpdateHabitRequest{}), h.handler.UpdateHabit)
	habits.DELETE("/:id", h.handler.DeleteHabit)

	habits.POST("/:id/archive", h.handler.ArchiveHabit)
	habits.POST("/:id/unarchive", h.handler.UnarchiveHabit)
	habits.POST("/:id/pause", validation.ValidateRequest(&dto.PauseHabitRequest{}), h.handler.PauseHabit)
	habits.POST("/:id/resume", h.handler.ResumeHabit)

	habits.POST("/:id/check-ins", validation.ValidateRequest(&dto.CheckInRequest{}), h.handler.CheckIn)
	habits.DELETE("/:id/check-ins/:date", h.handler.UndoCheckIn)
	habits.GET("/:id/check-ins", validation.ValidateQuery(&dto.HistoryQuery{}), compress, h.handler.ListCheckIns)

	habits.GET("/:id/milestones", h.handler.ListHabitMilestones)
	habits.GET("/:id/streaks", h.handler.GetStreakHistory)
	habits.GET("/:id/activity", validation.ValidateQuery(&dto.ActivityQuery{}), h.handler.GetHabitActivity)
	habits.GET("/:id/verify", h.handler.VerifyHabit)
}
