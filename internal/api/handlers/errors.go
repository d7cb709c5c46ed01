package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/middleware"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/analytics"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errResponded is returned by helpers that already wrote the error response
var errResponded = errors.New("response already written")

// respondError translates a service error into a status code and body
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var verr *habits.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, habits.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, habits.ErrHabitNotFound), errors.Is(err, habits.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case analytics.IsCanceled(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request canceled before the result was ready"})
	default:
		fields := []zap.Field{
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		}
		if trace := middleware.GetTraceContext(c); trace != nil {
			fields = append(fields, zap.String("request_id", trace.RequestID))
		}
		log.Error("Request failed", fields...)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
	c.Abort()
}

func badRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "field": field})
	c.Abort()
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
	c.Abort()
}
