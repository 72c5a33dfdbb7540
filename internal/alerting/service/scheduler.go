package service

import (
	"context"
	"sync"
	"time"

	"github.com/agrostock/agrostock-backend/pkg/lock"
	"github.com/agrostock/agrostock-backend/pkg/logger"
)

// ReviewLockName is the lock held while a review runs
const ReviewLockName = "alert-review"

// Reviewer runs a full review. Implemented by Engine.
type Reviewer interface {
	RunFullReview(ctx context.Context) *ReviewResult
}

// Purger deletes closed alerts past retention. Implemented by AlertService.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// IntervalSource supplies the delay until the next review. Implemented by ConfigService.
type IntervalSource interface {
	ReviewInterval(ctx context.Context, fallback time.Duration) time.Duration
}

// SchedulerOptions tunes a ReviewScheduler
type SchedulerOptions struct {
	// Fallback is used when no enabled configuration provides an interval
	Fallback   time.Duration
	LockTTL    time.Duration
	RunOnStart bool
}

// ReviewScheduler runs the automatic review periodically. Only one instance across
// the deployment runs a cycle at a time.
type ReviewScheduler struct {
	reviewer  Reviewer
	purger    Purger
	intervals IntervalSource
	locker    lock.Locker
	opts      SchedulerOptions
	logger    *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReviewScheduler creates a new scheduler. purger and intervals may be nil; a nil
// locker always runs.
func NewReviewScheduler(reviewer Reviewer, purger Purger, intervals IntervalSource, locker lock.Locker, opts SchedulerOptions, log *logger.Logger) *ReviewScheduler {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	if opts.Fallback <= 0 {
		opts.Fallback = 24 * time.Hour
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	return &ReviewScheduler{
		reviewer:  reviewer,
		purger:    purger,
		intervals: intervals,
		locker:    locker,
		opts:      opts,
		logger:    log.WithComponent("review-scheduler"),
	}
}

// Start starts the scheduler in a background goroutine
func (s *ReviewScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Dur("fallback_interval", s.opts.Fallback).Msg("review scheduler started")

		if s.opts.RunOnStart {
			s.RunCycle(ctx)
		}

		timer := time.NewTimer(s.nextInterval(ctx))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("review scheduler stopped")
				return
			case <-timer.C:
				s.RunCycle(ctx)
				timer.Reset(s.nextInterval(ctx))
			}
		}
	}()
}

// Stop stops the scheduler and waits for a running cycle to finish
func (s *ReviewScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunCycle takes the review lock, runs a full review and purges expired alerts.
// It returns nil when another instance holds the lock.
func (s *ReviewScheduler) RunCycle(ctx context.Context) *ReviewResult {
	release, ok, err := s.locker.Acquire(ctx, ReviewLockName, s.opts.LockTTL)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire review lock")
		return nil
	}
	if !ok {
		s.logger.Debug().Msg("review already running elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		// The cycle context may already be cancelled during shutdown
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release review lock")
		}
	}()

	result := s.reviewer.RunFullReview(ctx)

	if s.purger != nil {
		if _, err := s.purger.PurgeExpired(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to purge expired alerts")
		}
	}
	return result
}

func (s *ReviewScheduler) nextInterval(ctx context.Context) time.Duration {
	if s.intervals == nil {
		return s.opts.Fallback
	}
	return s.intervals.ReviewInterval(ctx, s.opts.Fallback)
}
