package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/security/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	bearerSchema = "Bearer "
	userIDKey    = "user_id"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	Window      time.Duration
	MaxAttempts int64
}

// NewAuthMiddleware verifies the bearer token and stores the caller's user ID.
// Tokens are issued by the account service; an empty issuer accepts any.
func NewAuthMiddleware(jwtSecret, issuer string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, bearerSchema) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(authHeader[len(bearerSchema):], jwtSecret, issuer)
		if err != nil {
			log.Warn("Token validation failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// RateLimitMiddleware limits requests per user, or per client IP before authentication
func RateLimitMiddleware(limiter auth.RateLimiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, ok := GetUserID(c); ok {
			key = userID.String()
		}
		key = fmt.Sprintf("%s:%s", key, c.FullPath())

		allowed, remaining, resetTime, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Error("Rate limiter error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"reset_in": time.Until(resetTime).Round(time.Second).String(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID retrieves the authenticated user's ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}
