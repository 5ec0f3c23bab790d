package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
)

type expiredSweeper interface {
	SweepExpired(ctx context.Context) (*dto.SweepResult, error)
}

// SweepScheduler drives the overdue sweep on a fixed interval through the
// background job queue, so a slow sweep never blocks the ticker and failures
// get the queue's retry behaviour.
type SweepScheduler struct {
	sweeper  expiredSweeper
	queue    *jobs.Queue
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewSweepScheduler constructs a SweepScheduler from the sweeper config.
func NewSweepScheduler(sweeper expiredSweeper, cfg config.SweeperConfig, logger *zap.Logger) *SweepScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SweepScheduler{sweeper: sweeper, interval: cfg.Interval, logger: logger}
	s.queue = jobs.NewQueue("overdue-sweep", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the worker queue and the interval ticker.
func (s *SweepScheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.EnqueueSweep()
			}
		}
	}()
}

// Stop halts the ticker and drains the queue workers.
func (s *SweepScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Stop()
}

// EnqueueSweep schedules one full sweep run.
func (s *SweepScheduler) EnqueueSweep() {
	job := jobs.Job{ID: uuid.NewString(), Type: "sweep_expired"}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue sweep", zap.Error(err))
	}
}

func (s *SweepScheduler) handle(ctx context.Context, job jobs.Job) error {
	result, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if result.Updated > 0 {
		s.logger.Info("scheduled sweep completed", zap.Int("updated", result.Updated))
	}
	return nil
}
