package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Timestamp time.Time `json:"timestamp" example:"2025-04-17T02:00:00Z"`
	Error     string    `json:"error,omitempty"`
	// Cache counters, only on /health/cache
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// Pinger reports whether the database answers
type Pinger interface {
	Ping() error
}

// CacheChecker reports whether the cache answers and how well it is hitting
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
	GetMetrics() map[string]interface{}
}

// SetupHealthRoutes registers health check and metrics endpoints. cache may be nil.
func SetupHealthRoutes(router *gin.Engine, db Pinger, cache CacheChecker) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
		})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:    "unavailable",
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ready",
			Timestamp: time.Now().UTC(),
		})
	})

	router.GET("/health/cache", func(c *gin.Context) {
		if cache == nil {
			c.JSON(http.StatusOK, HealthResponse{Status: "disabled", Timestamp: time.Now().UTC()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := cache.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, HealthResponse{
				Status:    "unavailable",
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
				Metrics:   cache.GetMetrics(),
			})
			return
		}
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Metrics:   cache.GetMetrics(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
