package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold    int           // Number of failures before opening circuit
	SuccessThreshold    int           // Number of successes before closing circuit
	Timeout             time.Duration // Time to wait before attempting to close circuit
	HalfOpenMaxRequests int           // Maximum number of requests in half-open state
}

// CircuitBreaker sheds load while the database keeps failing. Only 5xx
// responses count as failures.
type CircuitBreaker struct {
	config    CircuitBreakerConfig
	state     CircuitState
	failures  int
	successes int
	inflight  int
	lastError time.Time
	mutex     sync.Mutex
	log       *logger.Logger
	now       func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, log *logger.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		log:    log,
		now:    time.Now,
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// admit decides whether a request may pass and reports whether it was a half-open probe
func (cb *CircuitBreaker) admit() (bool, bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastError) <= cb.config.Timeout {
			return false, false
		}
		cb.state = StateHalfOpen
		cb.failures = 0
		cb.successes = 0
		cb.inflight = 0
	}
	if cb.state == StateHalfOpen {
		if cb.config.HalfOpenMaxRequests > 0 && cb.inflight >= cb.config.HalfOpenMaxRequests {
			return false, false
		}
		cb.inflight++
		return true, true
	}
	return true, false
}

func (cb *CircuitBreaker) record(failed, probe bool, path string) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if probe && cb.inflight > 0 {
		cb.inflight--
	}

	if failed {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			if cb.state != StateOpen {
				cb.log.Error("Circuit breaker opened",
					zap.String("path", path),
					zap.Int("failures", cb.failures))
			}
			cb.state = StateOpen
			cb.lastError = cb.now()
		}
		return
	}

	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= cb.config.SuccessThreshold {
		cb.state = StateClosed
		cb.failures = 0
		cb.successes = 0
		cb.log.Info("Circuit breaker closed", zap.String("path", path))
	} else if cb.state == StateClosed {
		cb.failures = 0
	}
}

// CircuitBreakerMiddleware creates a middleware that implements the circuit breaker pattern
func (cb *CircuitBreaker) CircuitBreakerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, probe := cb.admit()
		if !allowed {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "service temporarily unavailable",
			})
			c.Abort()
			return
		}

		c.Next()

		cb.record(c.Writer.Status() >= http.StatusInternalServerError, probe, c.Request.URL.Path)
	}
}
