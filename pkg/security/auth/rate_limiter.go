package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter defines an interface for rate limiting functionality
type RateLimiter interface {
	// Allow checks if the request should be allowed based on the key
	Allow(ctx context.Context, key string) (bool, int, time.Time, error)
	// Reset resets the counter for a specific key
	Reset(ctx context.Context, key string) error
	// WithLimit creates a new rate limiter with the specified limit
	WithLimit(maxAttempts int64, window time.Duration) RateLimiter
}

// RedisRateLimiter implements rate limiting using Redis
type RedisRateLimiter struct {
	client      *redis.Client
	prefix      string
	window      time.Duration
	maxAttempts int64
}

// NewRedisRateLimiter creates a new rate limiter using Redis
func NewRedisRateLimiter(client *redis.Client, window time.Duration, maxAttempts int64) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		prefix:      "habits:ratelimit:",
		window:      window,
		maxAttempts: maxAttempts,
	}
}

// WithLimit creates a new rate limiter with the specified limit
func (rl *RedisRateLimiter) WithLimit(maxAttempts int64, window time.Duration) RateLimiter {
	return &RedisRateLimiter{
		client:      rl.client,
		prefix:      rl.prefix,
		window:      window,
		maxAttempts: maxAttempts,
	}
}

// Allow checks if the request should be allowed based on the key
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	redisKey := fmt.Sprintf("%s%s", rl.prefix, key)
	now := time.Now()
	windowStart := now.Truncate(rl.window)

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireAt(ctx, redisKey, windowStart.Add(rl.window))

	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limiter error: %w", err)
	}

	count := incr.Val()
	remaining := rl.maxAttempts - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := windowStart.Add(rl.window)
	allowed := count <= rl.maxAttempts

	return allowed, int(remaining), resetTime, nil
}

// Reset resets the counter for a specific key
func (rl *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := fmt.Sprintf("%s%s", rl.prefix, key)
	return rl.client.Del(ctx, redisKey).Err()
}

// GetWindow returns the rate limit window duration
func (rl *RedisRateLimiter) GetWindow() time.Duration {
	return rl.window
}

// GetMaxAttempts returns the maximum number of attempts allowed
func (rl *RedisRateLimiter) GetMaxAttempts() int64 {
	return rl.maxAttempts
}

// MemoryRateLimiter is a fixed-window limiter for single-instance deployments
// running without Redis.
type MemoryRateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*memoryWindow
	window      time.Duration
	maxAttempts int64
	now         func() time.Time
}

type memoryWindow struct {
	start time.Time
	count int64
}

// NewMemoryRateLimiter creates an in-process rate limiter
func NewMemoryRateLimiter(window time.Duration, maxAttempts int64) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows:     make(map[string]*memoryWindow),
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// WithLimit creates a new rate limiter with the specified limit
func (rl *MemoryRateLimiter) WithLimit(maxAttempts int64, window time.Duration) RateLimiter {
	limiter := NewMemoryRateLimiter(window, maxAttempts)
	limiter.now = rl.now
	return limiter
}

// Allow checks if the request should be allowed based on the key
func (rl *MemoryRateLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := rl.now().Truncate(rl.window)
	w, ok := rl.windows[key]
	if !ok || !w.start.Equal(windowStart) {
		w = &memoryWindow{start: windowStart}
		rl.windows[key] = w
		rl.evict(windowStart)
	}
	w.count++

	remaining := rl.maxAttempts - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= rl.maxAttempts, int(remaining), windowStart.Add(rl.window), nil
}

// evict drops windows older than the current one
func (rl *MemoryRateLimiter) evict(current time.Time) {
	for k, w := range rl.windows {
		if w.start.Before(current) {
			delete(rl.windows, k)
		}
	}
}

// Reset resets the counter for a specific key
func (rl *MemoryRateLimiter) Reset(ctx context.Context, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, key)
	return nil
}
