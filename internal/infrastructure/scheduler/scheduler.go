package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/internal/domain/habits"
	"github.com/bhavinvirani/habit-tracker-with-openclaw-sub002/pkg/logger"
	"go.uber.org/zap"
)

// Refresher is the part of the habit service the scheduler drives
type Refresher interface {
	RefreshStreaks(ctx context.Context, batchSize int) (habits.RefreshReport, error)
}

type Scheduler struct {
	refresher    Refresher
	logger       *logger.Logger
	location     *time.Location
	dayStartHour int
	batchSize    int

	now func() time.Time
	wg  sync.WaitGroup
}

func NewScheduler(refresher Refresher, location *time.Location, dayStartHour, batchSize int, logger *logger.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{
		refresher:    refresher,
		logger:       logger,
		location:     location,
		dayStartHour: dayStartHour,
		batchSize:    batchSize,
		now:          time.Now,
	}
}

// NextRun returns the first day boundary strictly after t
func (s *Scheduler) NextRun(t time.Time) time.Time {
	local := t.In(s.location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.dayStartHour, 0, 0, 0, s.location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.dayStartHour, 0, 0, 0, s.location)
	}
	return next
}

// Start refreshes once immediately and then at every day boundary until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.RunOnce(ctx)

		for {
			now := s.now()
			next := s.NextRun(now)
			s.logger.Info("Streak refresh scheduled",
				zap.Time("current_time", now),
				zap.Time("next_run", next),
				zap.Duration("time_until_next_run", next.Sub(now)),
			)

			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("Streak scheduler stopped")
				return
			case <-timer.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the scheduling goroutine has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunOnce recomputes every habit whose derived fields are from an earlier day.
func (s *Scheduler) RunOnce(ctx context.Context) habits.RefreshReport {
	startTime := s.now()
	s.logger.Info("Starting streak refresh", zap.Time("start_time", startTime))

	report, err := s.refresher.RefreshStreaks(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("Streak refresh stopped early",
			zap.Error(err),
			zap.Int("scanned", report.Scanned),
		)
	}

	s.logger.Info("Completed streak refresh",
		zap.Int("scanned", report.Scanned),
		zap.Int("refreshed", report.Refreshed),
		zap.Int("broken", report.Broken),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(startTime)),
	)
	return report
}
