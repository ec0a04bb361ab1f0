package scheduler

import (
	"context"
	"time"

	applogger "MatchPulse/pkg/logger"
)

// Clock abstracts time so cycle timing can be tested without wall-clock
// sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration)
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// WorkFunc is one cycle's unit of work. Errors are the cycle's own
// business; the scheduler only logs them and moves on.
type WorkFunc func(ctx context.Context) error

// Scheduler runs a work function on a fixed interval: execute, measure,
// sleep the remaining budget. An overrunning cycle is allowed to finish
// (never cancelled mid-flight) and the next one starts immediately with a
// warning. At most one cycle is in flight at a time.
type Scheduler struct {
	clock  Clock
	logger *applogger.Logger
}

// New creates a Scheduler. A nil clock falls back to RealClock.
func New(clock Clock, logger *applogger.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock, logger: logger}
}

// Run drives the cycle loop until ctx is cancelled. It blocks the calling
// goroutine.
func (s *Scheduler) Run(ctx context.Context, name string, interval time.Duration, work WorkFunc) {
	s.logger.Info("cycle loop started",
		applogger.String("cycle", name),
		applogger.Duration("interval_ms", interval),
	)

	for {
		if ctx.Err() != nil {
			s.logger.Info("cycle loop stopped", applogger.String("cycle", name))
			return
		}

		start := s.clock.Now()
		if err := work(ctx); err != nil {
			s.logger.Error("cycle failed",
				applogger.String("cycle", name),
				applogger.Error(err),
			)
		}
		elapsed := s.clock.Now().Sub(start)

		if elapsed >= interval {
			s.logger.Warn("cycle overran interval",
				applogger.String("cycle", name),
				applogger.Duration("elapsed_ms", elapsed),
				applogger.Duration("interval_ms", interval),
			)
			continue
		}

		s.clock.Sleep(ctx, interval-elapsed)
	}
}
