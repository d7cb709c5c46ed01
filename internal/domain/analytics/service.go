package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 8

// Cache stores rendered views. Get misses are reported as errors.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type Config struct {
	HeatmapLevels           []int
	TrendThreshold          float64
	CorrelationLookbackDays int
	CorrelationMinSamples   int
	CacheTTL                time.Duration
}

type Service interface {
	Weekly(ctx context.Context, userID uuid.UUID, anchor *time.Time) (*WeeklyView, error)
	Monthly(ctx context.Context, userID uuid.UUID, year int, month time.Month) (*MonthlyView, error)
	Heatmap(ctx context.Context, userID uuid.UUID, year int) (*HeatmapView, error)
	Categories(ctx context.Context, userID uuid.UUID) (*CategoryBreakdownView, error)
	CompareWeeks(ctx context.Context, userID uuid.UUID) (*WeekComparison, error)
	Productivity(ctx context.Context, userID uuid.UUID) (*ProductivityScore, error)
	DayOfWeek(ctx context.Context, userID uuid.UUID) (*DayOfWeekReport, error)
	Correlations(ctx context.Context, userID uuid.UUID) ([]Correlation, error)
	Predictions(ctx context.Context, userID uuid.UUID) ([]Prediction, error)
}

type service struct {
	repos    habits.Repositories
	detector *habits.Detector
	clock    habits.Clock
	cache    Cache
	cfg      Config
	logger   *zap.Logger
}

// NewService builds the analytics service. cache may be nil.
func NewService(repos habits.Repositories, detector *habits.Detector, clock habits.Clock, cache Cache, cfg Config, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if detector == nil {
		detector = habits.NewDetector(nil)
	}
	return &service{
		repos:    repos,
		detector: detector,
		clock:    clock,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// CacheKeyPattern matches every cached view of a user.
func CacheKeyPattern(userID uuid.UUID) string {
	return fmt.Sprintf("analytics:%s:*", userID)
}

func (s *service) cacheKey(userID uuid.UUID, today time.Time, view string) string {
	return fmt.Sprintf("analytics:%s:%s:%s", userID, habits.FormatDate(today), view)
}

// load reads the user's tracked habits and fetches their ledgers concurrently.
func (s *service) load(ctx context.Context, userID uuid.UUID) (*Dataset, error) {
	list, _, err := s.repos.Habits.List(ctx, habits.HabitFilter{UserID: &userID})
	if err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}

	tracked := list[:0]
	for _, h := range list {
		if h.Tracked() {
			tracked = append(tracked, h)
		}
	}

	ledgers := make([][]habits.CompletionRecord, len(tracked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range tracked {
		g.Go(func() error {
			records, err := s.repos.Ledger.Query(gctx, tracked[i].ID, habits.DateRange{})
			if err != nil {
				return err
			}
			ledgers[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := canceled(ctx); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	ds := &Dataset{
		Habits:  tracked,
		Records: make(map[uuid.UUID][]habits.CompletionRecord, len(tracked)),
		Today:   s.clock.Today(),
	}
	for i, h := range tracked {
		ds.Records[h.ID] = ledgers[i]
	}
	return ds, nil
}

// remember serves a view from the cache or computes and stores it.
func remember[T any](ctx context.Context, s *service, userID uuid.UUID, view string, compute func(*Dataset) (T, error)) (T, error) {
	var zero T
	key := s.cacheKey(userID, s.clock.Today(), view)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached T
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	ds, err := s.load(ctx, userID)
	if err != nil {
		return zero, err
	}
	result, err := compute(ds)
	if err != nil {
		return zero, err
	}
	if err := canceled(ctx); err != nil {
		return zero, err
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		raw, err := json.Marshal(result)
		if err == nil {
			err = s.cache.Set(ctx, key, string(raw), s.cfg.CacheTTL)
		}
		if err != nil {
			s.logger.Debug("Failed to cache analytics view", zap.String("view", view), zap.Error(err))
		}
	}
	return result, nil
}

func (s *service) Weekly(ctx context.Context, userID uuid.UUID, anchor *time.Time) (*WeeklyView, error) {
	day := s.clock.Today()
	if anchor != nil {
		day = habits.Day(*anchor)
	}
	return remember(ctx, s, userID, "weekly:"+habits.FormatDate(habits.WeekStart(day)), func(ds *Dataset) (*WeeklyView, error) {
		view := Weekly(ds, day)
		return &view, nil
	})
}

func (s *service) Monthly(ctx context.Context, userID uuid.UUID, year int, month time.Month) (*MonthlyView, error) {
	if month < time.January || month > time.December {
		return nil, &habits.ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	return remember(ctx, s, userID, fmt.Sprintf("monthly:%04d-%02d", year, month), func(ds *Dataset) (*MonthlyView, error) {
		view := Monthly(ds, year, month)
		return &view, nil
	})
}

func (s *service) Heatmap(ctx context.Context, userID uuid.UUID, year int) (*HeatmapView, error) {
	return remember(ctx, s, userID, fmt.Sprintf("heatmap:%04d", year), func(ds *Dataset) (*HeatmapView, error) {
		return Heatmap(ctx, ds, year, s.cfg.HeatmapLevels)
	})
}

func (s *service) Categories(ctx context.Context, userID uuid.UUID) (*CategoryBreakdownView, error) {
	return remember(ctx, s, userID, "categories", func(ds *Dataset) (*CategoryBreakdownView, error) {
		view := CategoryBreakdown(ds, DefaultCategoryLookback)
		return &view, nil
	})
}

func (s *service) CompareWeeks(ctx context.Context, userID uuid.UUID) (*WeekComparison, error) {
	return remember(ctx, s, userID, "week-comparison", func(ds *Dataset) (*WeekComparison, error) {
		cmp := CompareWeeks(ds, s.cfg.TrendThreshold)
		return &cmp, nil
	})
}

func (s *service) Productivity(ctx context.Context, userID uuid.UUID) (*ProductivityScore, error) {
	return remember(ctx, s, userID, "productivity", func(ds *Dataset) (*ProductivityScore, error) {
		score := Productivity(ds, s.cfg.TrendThreshold)
		return &score, nil
	})
}

func (s *service) DayOfWeek(ctx context.Context, userID uuid.UUID) (*DayOfWeekReport, error) {
	return remember(ctx, s, userID, "weekdays", func(ds *Dataset) (*DayOfWeekReport, error) {
		return DayOfWeekPerformance(ds, DefaultWeekdayWindow), nil
	})
}

func (s *service) Correlations(ctx context.Context, userID uuid.UUID) ([]Correlation, error) {
	return remember(ctx, s, userID, "correlations", func(ds *Dataset) ([]Correlation, error) {
		return Correlations(ctx, ds, CorrelationConfig{
			LookbackDays: s.cfg.CorrelationLookbackDays,
			MinSamples:   s.cfg.CorrelationMinSamples,
		})
	})
}

func (s *service) Predictions(ctx context.Context, userID uuid.UUID) ([]Prediction, error) {
	return remember(ctx, s, userID, "predictions", func(ds *Dataset) ([]Prediction, error) {
		milestones, err := s.repos.Milestones.List(ctx, userID, nil)
		if err != nil {
			if cerr := canceled(ctx); cerr != nil {
				return nil, cerr
			}
			return nil, fmt.Errorf("failed to load milestones: %w", err)
		}
		earned := make(map[uuid.UUID]map[int]bool)
		for _, m := range milestones {
			if m.Type != habits.MilestoneStreak {
				continue
			}
			if earned[m.HabitID] == nil {
				earned[m.HabitID] = make(map[int]bool)
			}
			earned[m.HabitID][m.Value] = true
		}
		return Predictions(ds, earned, s.detector), nil
	})
}

// IsCanceled reports whether err came from an abandoned computation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrComputationCanceled)
}
