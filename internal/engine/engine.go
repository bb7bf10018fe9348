package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"btc-predictor/internal/config"
)

// Engine runs one lifecycle runner per configured timeframe. Timeframes are
// fully independent; a stalled cycle on one never blocks the others.
type Engine struct {
	runners []*Runner
	logger  zerolog.Logger
}

// New constructs the engine with one runner per timeframe.
func New(deps Deps, timeframes []config.Timeframe) *Engine {
	runners := make([]*Runner, 0, len(timeframes))
	for _, tf := range timeframes {
		runners = append(runners, NewRunner(deps, tf))
	}
	return &Engine{
		runners: runners,
		logger:  deps.Logger.With().Str("component", "engine").Logger(),
	}
}

// Runners exposes the per-timeframe runners for one-shot commands.
func (e *Engine) Runners() []*Runner {
	return e.runners
}

// Run blocks until the context is cancelled, then waits for every runner to
// drain.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Int("timeframes", len(e.runners)).Msg("engine starting")

	var wg sync.WaitGroup
	for _, runner := range e.runners {
		wg.Add(1)
		go func(r *Runner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error().Err(err).Str("timeframe", r.tf.Name).Msg("runner stopped")
			}
		}(runner)
	}
	wg.Wait()

	e.logger.Info().Msg("engine stopped")
	return ctx.Err()
}
