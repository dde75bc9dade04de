package prices

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs fn immediately and then on every tick until ctx is done.
// A failing run is logged and does not stop the loop.
type Scheduler struct {
	interval time.Duration
	fn       func(context.Context) error
}

func NewScheduler(interval time.Duration, fn func(context.Context) error) *Scheduler {
	return &Scheduler{interval: interval, fn: fn}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if err := s.fn(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scheduled run failed", "error", err)
	}
}
