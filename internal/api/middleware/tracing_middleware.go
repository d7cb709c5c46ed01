package middleware

import (
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	traceContextKey = "trace_context"
)

// TraceContext holds tracing information
type TraceContext struct {
	RequestID string
	StartTime time.Time
}

// TracingMiddleware tags each request with an ID and logs its outcome
type TracingMiddleware struct {
	log *logger.Logger
}

// NewTracingMiddleware creates a new tracing middleware
func NewTracingMiddleware(log *logger.Logger) *TracingMiddleware {
	return &TracingMiddleware{log: log}
}

// TraceRequest reuses an incoming X-Request-ID or generates one
func (m *TracingMiddleware) TraceRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		traceCtx := &TraceContext{
			RequestID: requestID,
			StartTime: time.Now(),
		}
		c.Set(traceContextKey, traceCtx)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(traceCtx.StartTime)),
		}
		if userID, ok := GetUserID(c); ok {
			fields = append(fields, zap.String("user_id", userID.String()))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		m.log.Info("Request completed", fields...)
	}
}

// GetTraceContext retrieves the trace context from the gin context
func GetTraceContext(c *gin.Context) *TraceContext {
	if traceCtx, exists := c.Get(traceContextKey); exists {
		return traceCtx.(*TraceContext)
	}
	return nil
}
