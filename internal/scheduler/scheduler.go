package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per cycle interval.
type TickFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour for one timeframe.
type Options struct {
	Name         string
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler paces one timeframe's prediction cycles against wall-clock time.
// Each timeframe runs its own Scheduler so cycle streams never block each
// other.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Str("timeframe", opts.Name).Logger(),
	}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled. A tick error is logged, not fatal: the next cycle still runs.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := WaitUntil(ctx, time.Now().Add(s.opts.StartupDelay)); err != nil {
			return err
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		if time.Until(next) < 0 {
			next = s.nextTick(time.Now().UTC())
		}

		s.logger.Debug().Time("next_tick", next).Msg("waiting for next cycle")
		if err := WaitUntil(ctx, next); err != nil {
			return err
		}

		s.logger.Info().Time("tick", next).Msg("starting cycle tick")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("tick", next).Msg("cycle tick failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

// WaitUntil sleeps until the deadline or context cancellation without
// holding a goroutine beyond its timer. The engine reuses it for outcome
// deadlines and price retry pauses.
func WaitUntil(ctx context.Context, deadline time.Time) error {
	delay := time.Until(deadline)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}
