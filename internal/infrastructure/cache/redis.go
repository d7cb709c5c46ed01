package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/analytics"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/events"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Custom error types
var (
	ErrCacheNotFound   = errors.New("cache: key not found")
	ErrCacheConnection = errors.New("cache: connection error")
	ErrInvalidConfig   = errors.New("cache: invalid configuration")
)

// HabitEventChannel is the Redis channel habit events are mirrored to
const HabitEventChannel = "habits:events"

// Config holds the configuration for Redis client
type Config struct {
	Addr             string
	Password         string
	DB               int
	PoolSize         int
	MinIdleConns     int
	MaxRetries       int
	ConnTimeout      time.Duration
	OperationTimeout time.Duration
	HealthInterval   time.Duration
	UseCompression   bool
	MaxKeyLength     int    // Maximum allowed key length
	KeyPrefix        string // Prefix for all keys
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		PoolSize:         100,
		MinIdleConns:     10,
		MaxRetries:       3,
		ConnTimeout:      5 * time.Second,
		OperationTimeout: 2 * time.Second,
		HealthInterval:   10 * time.Second,
		UseCompression:   false,
		MaxKeyLength:     256,
		KeyPrefix:        "habits:",
	}
}

// NewConfigFromEnv creates a Redis config from project configuration
func NewConfigFromEnv(cfg *config.Config) *Config {
	c := DefaultConfig()
	c.Addr = fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	c.Password = cfg.Redis.Password
	c.DB = cfg.Redis.DB
	if cfg.Server.Timeout > 0 {
		c.OperationTimeout = cfg.Server.Timeout
	}
	return c
}

// CacheMetrics tracks cache hit/miss statistics with atomic operations
type CacheMetrics struct {
	hits   atomic.Int64
	misses atomic.Int64
	byType sync.Map // map[string]*TypeMetrics
}

// TypeMetrics tracks metrics for a specific cache type with atomic operations
type TypeMetrics struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// RedisClient wraps the Redis client with additional functionality
type RedisClient struct {
	client    *redis.Client
	metrics   *CacheMetrics
	config    *Config
	logger    *zap.Logger
	closeOnce sync.Once
	done      chan struct{}
	health    int32 // 0 = healthy, 1 = unhealthy, using atomic operations
}

// NewRedisClient creates a new Redis client with the provided configuration
func NewRedisClient(cfg *Config, logger *zap.Logger) (*RedisClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidConfig)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnTimeout)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := newRedisClient(client, cfg, logger)
	go r.healthCheckLoop()
	return r, nil
}

func newRedisClient(client *redis.Client, cfg *Config, logger *zap.Logger) *RedisClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisClient{
		client:  client,
		config:  cfg,
		metrics: &CacheMetrics{},
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// healthCheckLoop periodically checks Redis health until the client is closed
func (r *RedisClient) healthCheckLoop() {
	interval := r.config.HealthInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.config.OperationTimeout)
			if err := r.HealthCheck(ctx); err != nil {
				atomic.StoreInt32(&r.health, 1)
				r.logger.Error("Redis health check failed", zap.Error(err))
			} else {
				atomic.StoreInt32(&r.health, 0)
			}
			cancel()
		}
	}
}

// IsHealthy returns whether Redis is currently healthy
func (r *RedisClient) IsHealthy() bool {
	return atomic.LoadInt32(&r.health) == 0
}

// withContext wraps the context with a timeout if none is set
func (r *RedisClient) withContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok {
		return context.WithTimeout(ctx, r.config.OperationTimeout)
	}
	return ctx, func() {}
}

// validateKey checks if the key is valid
func (r *RedisClient) validateKey(key string) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidConfig)
	}
	if len(key) > r.config.MaxKeyLength {
		return fmt.Errorf("%w: key too long (max %d characters)", ErrInvalidConfig, r.config.MaxKeyLength)
	}
	return nil
}

// prefixKey adds the configured prefix to the key
func (r *RedisClient) prefixKey(key string) string {
	return r.config.KeyPrefix + key
}

// cacheType is the segment of a key naming what it caches, "analytics" for "analytics:<user>:..."
func cacheType(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Get retrieves a value from the cache
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	if err := r.validateKey(key); err != nil {
		return "", err
	}
	if !r.IsHealthy() {
		return "", ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	val, err := r.client.Get(ctx, r.prefixKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.trackCacheEvent(false, cacheType(key))
			return "", fmt.Errorf("%w: %s", ErrCacheNotFound, key)
		}
		return "", fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	r.trackCacheEvent(true, cacheType(key))

	if r.config.UseCompression {
		return decompress(val)
	}
	return val, nil
}

// Set stores a value in the cache
func (r *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.validateKey(key); err != nil {
		return err
	}
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	if r.config.UseCompression {
		compressed, err := compress(value)
		if err != nil {
			return fmt.Errorf("compression failed: %w", err)
		}
		value = compressed
	}

	return r.client.Set(ctx, r.prefixKey(key), value, ttl).Err()
}

// compress compresses a string using gzip
func compress(data string) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)

	if _, err := gz.Write([]byte(data)); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// decompress decompresses a gzipped string
func decompress(data string) (string, error) {
	gr, err := gzip.NewReader(strings.NewReader(data))
	if err != nil {
		return "", err
	}
	defer gr.Close()

	decompressed, err := io.ReadAll(gr)
	if err != nil {
		return "", err
	}
	return string(decompressed), nil
}

// Delete removes values from the cache
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	prefixedKeys := make([]string, len(keys))
	for i, key := range keys {
		if err := r.validateKey(key); err != nil {
			return err
		}
		prefixedKeys[i] = r.prefixKey(key)
	}
	return r.client.Del(ctx, prefixedKeys...).Err()
}

// ClearByPattern removes all cache entries matching the given pattern
func (r *RedisClient) ClearByPattern(ctx context.Context, pattern string) error {
	if !r.IsHealthy() {
		return ErrCacheConnection
	}

	ctx, cancel := r.withContext(ctx)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.prefixKey(pattern), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

// Close stops the health loop and closes the Redis client
func (r *RedisClient) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		err = r.client.Close()
	})
	return err
}

// trackCacheEvent tracks cache hits/misses with atomic operations
func (r *RedisClient) trackCacheEvent(hit bool, cacheType string) {
	value, _ := r.metrics.byType.LoadOrStore(cacheType, &TypeMetrics{})
	typeMetrics := value.(*TypeMetrics)

	if hit {
		r.metrics.hits.Add(1)
		typeMetrics.hits.Add(1)
	} else {
		r.metrics.misses.Add(1)
		typeMetrics.misses.Add(1)
	}
}

// HitRate returns hits as a share of all lookups, 0 when nothing was looked up
func (r *RedisClient) HitRate() float64 {
	hits := r.metrics.hits.Load()
	total := hits + r.metrics.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// GetMetrics returns current cache metrics
func (r *RedisClient) GetMetrics() map[string]interface{} {
	typeMetrics := make(map[string]interface{})
	r.metrics.byType.Range(func(key, value interface{}) bool {
		tm := value.(*TypeMetrics)
		typeMetrics[key.(string)] = map[string]interface{}{
			"hits":   tm.hits.Load(),
			"misses": tm.misses.Load(),
		}
		return true
	})

	stats := r.client.PoolStats()
	return map[string]interface{}{
		"hits":     r.metrics.hits.Load(),
		"misses":   r.metrics.misses.Load(),
		"hit_rate": r.HitRate(),
		"by_type":  typeMetrics,
		"health":   r.IsHealthy(),
		"pool_stats": map[string]interface{}{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"stale_conns": stats.StaleConns,
		},
		"config": map[string]interface{}{
			"compression": r.config.UseCompression,
			"prefix":      r.config.KeyPrefix,
			"max_retries": r.config.MaxRetries,
		},
	}
}

// HealthCheck checks if Redis is responding
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Client exposes the raw connection for components such as the rate limiter
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// InvalidateUserAnalytics drops every cached analytics view of a user
func (r *RedisClient) InvalidateUserAnalytics(ctx context.Context, userID uuid.UUID) error {
	pattern := analytics.CacheKeyPattern(userID)
	r.logger.Debug("Invalidating analytics cache", zap.String("pattern", pattern))
	return r.ClearByPattern(ctx, pattern)
}

// PublishHabitEvent mirrors a habit event to the Redis channel for other instances
func (r *RedisClient) PublishHabitEvent(ctx context.Context, event *events.HabitEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, HabitEventChannel, data).Err()
}

// SubscribeToHabitEvents calls callback for every event on the habit channel
// until ctx is done
func (r *RedisClient) SubscribeToHabitEvents(ctx context.Context, callback func(*events.HabitEvent) error) error {
	pubsub := r.client.Subscribe(ctx, HabitEventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event events.HabitEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Warn("Dropping malformed habit event", zap.Error(err))
				continue
			}
			if err := callback(&event); err != nil {
				r.logger.Error("Habit event callback failed", zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
