package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"stockwatch/metrics"
)

// Scheduler invokes the runner on a fixed period. Overlapping runs are not
// allowed: a tick that arrives while the previous run is still in flight is
// skipped, keeping same-ticker writes from interleaving across runs.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	running  atomic.Bool
	log      *zap.SugaredLogger
}

func NewScheduler(runner *Runner, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{runner: runner, interval: interval, log: log}
}

// Start blocks until the context is canceled, kicking off one run per tick.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.running.CompareAndSwap(false, true) {
				s.log.Warnw("Previous run still in flight, skipping tick")
				metrics.IncrementSkippedTicks()
				continue
			}
			go func() {
				defer s.running.Store(false)
				if _, err := s.runner.Run(ctx); err != nil {
					s.log.Errorw("Fetch run failed", "error", err)
				}
			}()
		}
	}
}
