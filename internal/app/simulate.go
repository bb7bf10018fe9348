package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"btc-predictor/internal/config"
	"btc-predictor/internal/engine"
	"btc-predictor/internal/llm"
	"btc-predictor/internal/marketdata"
	"btc-predictor/internal/model"
	"btc-predictor/internal/storage"
)

// simulateBasePrice anchors the synthetic market used by the dry run.
var simulateBasePrice = decimal.NewFromInt(65000)

// Simulate runs one full prediction cycle against a synthetic market with a
// static producer and reviewer. No database or API keys required; the cycle
// lands in an in-memory store and its full lifecycle is printed.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	tfName := opts.Timeframe
	if tfName == "" {
		tfName = "5m"
	}
	duration, err := time.ParseDuration(tfName)
	if err != nil || duration <= 0 {
		return fmt.Errorf("invalid timeframe %q", tfName)
	}
	tf := config.Timeframe{Name: tfName, Duration: duration}

	direction := model.Direction(strings.ToUpper(opts.Direction))
	if opts.Direction == "" {
		direction = model.DirectionUp
	}
	if !direction.Valid() {
		return fmt.Errorf("invalid direction %q", opts.Direction)
	}

	confidence := opts.Confidence
	if confidence == 0 {
		confidence = 0.9
	}
	if confidence < 0 || confidence > 1 {
		return errors.New("--confidence must be in [0, 1]")
	}

	source := newStaticSource(simulateBasePrice, direction)
	memory := storage.NewMemory()

	runner := engine.NewRunner(engine.Deps{
		Store:    memory,
		Producer: &staticProducer{direction: direction, confidence: confidence},
		Reviewer: &staticReviewer{},
		Source:   source,
		Config:   a.Config.Engine,
		Logger:   a.Logger,
	}, tf)

	// Two ticks one interval apart: the first opens the cycle, the second
	// resolves it at its deadline. Backdating keeps the run instant.
	start := time.Now().UTC().Add(-tf.Duration)
	if err := runner.Tick(ctx, start); err != nil {
		return err
	}
	if err := runner.Tick(ctx, start.Add(tf.Duration)); err != nil {
		return err
	}

	forecasts := memory.Forecasts()
	if len(forecasts) == 0 {
		return errors.New("simulation produced no forecast")
	}
	return printCycle(ctx, memory, forecasts[0].ID, tf.Name)
}

func printCycle(ctx context.Context, memory *storage.Memory, forecastID, timeframe string) error {
	f, err := memory.GetForecast(ctx, forecastID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "=== Simulated cycle (%s) ===\n", timeframe)
	fmt.Fprintf(os.Stdout, "forecast: %s @ %s -> target %s (confidence %.2f)\n",
		f.Direction, f.EntryPrice.StringFixed(2), f.TargetPrice.StringFixed(2), f.Confidence)

	review, err := memory.GetReview(ctx, forecastID)
	if err == nil {
		fmt.Fprintf(os.Stdout, "review:   %s (confidence %.2f), consensus %s, veto=%v\n",
			review.Agreement, review.Confidence, review.Consensus, review.Veto)
	}

	outcome, err := memory.GetOutcome(ctx, forecastID)
	if err == nil {
		fmt.Fprintf(os.Stdout, "outcome:  realized %s, correct=%v\n",
			outcome.RealizedPrice.StringFixed(2), outcome.CorrectDirection)
	}

	score, err := memory.GetScore(ctx, forecastID)
	if err == nil {
		fmt.Fprintf(os.Stdout, "score:    price_error %s, calibration_error %.3f\n",
			score.PriceError.StringFixed(5), score.CalibrationError)
	}

	fmt.Fprintf(os.Stdout, "state:    %s\n", f.State)

	learnings, err := memory.ListLearnings(ctx, timeframe)
	if err != nil {
		return err
	}
	for _, l := range learnings {
		if l.SourceForecastID == forecastID {
			fmt.Fprintf(os.Stdout, "learning: %s: %s\n", l.Kind, l.Guidance)
		}
	}
	return nil
}

// staticSource serves a deterministic synthetic market. The realized price
// always confirms the simulated direction so the happy path is visible end
// to end.
type staticSource struct {
	base     decimal.Decimal
	realized decimal.Decimal
}

func newStaticSource(base decimal.Decimal, direction model.Direction) *staticSource {
	move := decimal.NewFromFloat(1.004)
	switch direction {
	case model.DirectionDown:
		move = decimal.NewFromFloat(0.996)
	case model.DirectionFlat:
		move = decimal.NewFromInt(1)
	}
	return &staticSource{base: base, realized: base.Mul(move)}
}

func (s *staticSource) History(_ context.Context, _ string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 48
	}
	now := time.Now().UTC()
	candles := make([]model.Candle, 0, limit)
	for i := 0; i < limit; i++ {
		offset := decimal.NewFromFloat(float64(i%5-2) * 0.0005)
		price := s.base.Mul(decimal.NewFromInt(1).Add(offset))
		candles = append(candles, model.Candle{
			OpenTime: now.Add(-time.Duration(limit-i) * time.Minute),
			Open:     price,
			High:     price.Mul(decimal.NewFromFloat(1.0004)),
			Low:      price.Mul(decimal.NewFromFloat(0.9996)),
			Close:    price,
			Volume:   decimal.NewFromInt(100),
		})
	}
	return candles, nil
}

func (s *staticSource) LatestPrice(_ context.Context) (decimal.Decimal, error) {
	return s.base, nil
}

func (s *staticSource) PriceAt(_ context.Context, _ time.Time, _ string) (decimal.Decimal, error) {
	return s.realized, nil
}

type staticProducer struct {
	direction  model.Direction
	confidence float64
}

func (p *staticProducer) Produce(_ context.Context, b model.Briefing) (llm.Proposal, error) {
	move := decimal.NewFromFloat(1.004)
	switch p.direction {
	case model.DirectionDown:
		move = decimal.NewFromFloat(0.996)
	case model.DirectionFlat:
		move = decimal.NewFromInt(1)
	}
	return llm.Proposal{
		Direction:  p.direction,
		Target:     b.CurrentPrice.Mul(move),
		Confidence: p.confidence,
		Rationale:  "simulated forecast",
	}, nil
}

type staticReviewer struct{}

func (r *staticReviewer) Review(_ context.Context, _ model.Forecast, _ model.Briefing) (llm.Assessment, error) {
	return llm.Assessment{
		Agreement:  model.Agree,
		Confidence: 0.85,
		Concerns:   nil,
		Veto:       false,
	}, nil
}

var (
	_ marketdata.Source = (*staticSource)(nil)
	_ llm.Producer      = (*staticProducer)(nil)
	_ llm.Reviewer      = (*staticReviewer)(nil)
)
