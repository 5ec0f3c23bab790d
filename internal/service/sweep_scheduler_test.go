package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/pkg/config"
)

type mockExpiredSweeper struct {
	calls chan struct{}
}

func (m *mockExpiredSweeper) SweepExpired(ctx context.Context) (*dto.SweepResult, error) {
	select {
	case m.calls <- struct{}{}:
	default:
	}
	return &dto.SweepResult{Updated: 1, SweptAt: time.Now().UTC()}, nil
}

func waitForSweep(t *testing.T, calls chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep was not executed in time")
	}
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	sweeper := &mockExpiredSweeper{calls: make(chan struct{}, 1)}
	scheduler := NewSweepScheduler(sweeper, config.SweeperConfig{Interval: 10 * time.Millisecond, Workers: 1}, zap.NewNop())

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	waitForSweep(t, sweeper.calls)
}

func TestEnqueueSweepRunsOnDemand(t *testing.T) {
	sweeper := &mockExpiredSweeper{calls: make(chan struct{}, 1)}
	scheduler := NewSweepScheduler(sweeper, config.SweeperConfig{Interval: time.Hour, Workers: 1}, zap.NewNop())

	scheduler.Start(context.Background())
	defer scheduler.Stop()

	scheduler.EnqueueSweep()
	waitForSweep(t, sweeper.calls)
}

func TestEnqueueBeforeStartDoesNotPanic(t *testing.T) {
	sweeper := &mockExpiredSweeper{calls: make(chan struct{}, 1)}
	scheduler := NewSweepScheduler(sweeper, config.SweeperConfig{Interval: time.Hour, Workers: 1}, zap.NewNop())

	require.NotPanics(t, func() { scheduler.EnqueueSweep() })
}
