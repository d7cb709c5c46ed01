package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/handlers"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/middleware"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/api/routes"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/analytics"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/events"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/cache"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/eventbus"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/persistence/connection"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/persistence/migrations"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/infrastructure/scheduler"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/broker"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/config"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/security/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

func main() {
	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env file: %v", err)
	}

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.NewLogger(cfg.Logging)
	defer appLog.Sync()

	appLog.Info("Configuration loaded",
		zap.String("mode", cfg.Server.Mode),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.String("timezone", cfg.Engine.Timezone))

	location, err := cfg.Engine.Location()
	if err != nil {
		appLog.Fatal("Invalid engine timezone", zap.Error(err))
	}
	clock := habits.SystemClock{Location: location, DayStartHour: cfg.Engine.DayStartHour}

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	db, err := connection.NewDatabase(cfg, cfg.Server.Mode != "production")
	if err != nil {
		appLog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := migrations.AutoMigrate(db, appLog.Logger); err != nil {
		appLog.Fatal("Failed to run database migrations", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis is optional. Without it analytics are computed on every request and
	// rate limits are kept per instance.
	var (
		redisClient *cache.RedisClient
		viewCache   analytics.Cache
		cacheHealth routes.CacheChecker
		rateLimiter auth.RateLimiter = auth.NewMemoryRateLimiter(time.Minute, 600)
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cache.NewConfigFromEnv(cfg), appLog.Logger)
		if err != nil {
			appLog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		viewCache = redisClient
		cacheHealth = redisClient
		rateLimiter = auth.NewRedisRateLimiter(redisClient.Client(), time.Minute, 600)
	}

	brokerLog := logrus.New()
	brokerLog.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Server.Mode == "production" {
		brokerLog.SetLevel(logrus.InfoLevel)
	} else {
		brokerLog.SetLevel(logrus.DebugLevel)
	}
	messageBroker := broker.NewInMemoryBroker(brokerLog)
	defer messageBroker.Close()

	bus := eventbus.New(messageBroker, appLog.Logger)
	if _, err := bus.Subscribe(ctx, eventbus.LogEvents(appLog.Logger)); err != nil {
		appLog.Fatal("Failed to subscribe to habit events", zap.Error(err))
	}
	if redisClient != nil {
		if _, err := bus.Subscribe(ctx, eventbus.InvalidateAnalytics(redisClient)); err != nil {
			appLog.Fatal("Failed to subscribe to habit events", zap.Error(err))
		}
		if _, err := bus.Subscribe(ctx, eventbus.Mirror(redisClient.PublishHabitEvent)); err != nil {
			appLog.Fatal("Failed to subscribe to habit events", zap.Error(err))
		}
		// Other instances mirror their events here; their writes invalidate our views too
		go func() {
			err := redisClient.SubscribeToHabitEvents(ctx, func(event *events.HabitEvent) error {
				return redisClient.InvalidateUserAnalytics(ctx, event.UserID)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("Habit event subscription stopped", zap.Error(err))
			}
		}()
	}

	repos := habits.NewRepositories(db)
	detector := habits.NewDetector(cfg.Engine.MilestoneThresholds)
	habitsService := habits.NewService(repos, detector, clock, bus, appLog.Logger)
	analyticsService := analytics.NewService(repos, detector, clock, viewCache, analytics.Config{
		HeatmapLevels:           cfg.Engine.HeatmapLevels,
		TrendThreshold:          cfg.Engine.TrendThreshold,
		CorrelationLookbackDays: cfg.Engine.CorrelationLookbackDays,
		CorrelationMinSamples:   cfg.Engine.CorrelationMinSamples,
		CacheTTL:                cfg.Engine.AnalyticsCacheTTL,
	}, appLog.Logger)

	var refresh *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		refresh = scheduler.NewScheduler(habitsService, location, cfg.Engine.DayStartHour, cfg.Scheduler.RefreshBatchSize, appLog)
		refresh.Start(ctx)
		appLog.Info("Streak refresh scheduler started")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewTracingMiddleware(appLog).TraceRequest())
	router.Use(middleware.NewMetricsMiddleware().CollectMetrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     append(cfg.CORS.AllowedHeaders, "Authorization", "Content-Type", "X-Request-ID"),
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-ID"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	guard := routes.Guard{Auth: cfg.Auth, Limiter: rateLimiter, Log: appLog}
	routes.SetupHealthRoutes(router, db, cacheHealth)
	routes.NewHabitsRoutes(handlers.NewHabitsHandler(habitsService, clock, appLog), guard).RegisterRoutes(router)
	routes.NewAnalyticsRoutes(handlers.NewAnalyticsHandler(analyticsService, clock, appLog), guard).RegisterRoutes(router)

	for _, route := range router.Routes() {
		appLog.Debug("Route registered",
			zap.String("method", route.Method),
			zap.String("path", route.Path))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server forced to shutdown", zap.Error(err))
	}
	if refresh != nil {
		refresh.Wait()
	}

	appLog.Info("Server exited properly")
}
