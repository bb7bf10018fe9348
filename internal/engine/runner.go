package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-predictor/internal/alerting"
	"btc-predictor/internal/config"
	"btc-predictor/internal/consensus"
	"btc-predictor/internal/learning"
	"btc-predictor/internal/llm"
	"btc-predictor/internal/marketdata"
	"btc-predictor/internal/model"
	"btc-predictor/internal/scheduler"
	"btc-predictor/internal/scoring"
	"btc-predictor/internal/storage"
)

// resolveAttemptsPerTick bounds in-tick price retries. A deadline whose price
// is still unavailable after these attempts stays pending and is retried on
// the next tick.
const resolveAttemptsPerTick = 3

// Deps bundles everything a runner needs. Locker and Notifier are optional.
type Deps struct {
	Store    storage.Repository
	Locker   storage.AdvisoryLocker
	Producer llm.Producer
	Reviewer llm.Reviewer
	Source   marketdata.Source
	Notifier alerting.Notifier
	Config   config.EngineConfig
	Logger   zerolog.Logger
}

// Runner drives the prediction lifecycle for a single timeframe. Each tick
// first resolves the forecast whose deadline just passed, then opens the next
// cycle, so the cadence matches the timeframe with no gap between cycles.
//
// Runner is not safe for concurrent use; each timeframe gets its own.
type Runner struct {
	tf        config.Timeframe
	cfg       config.EngineConfig
	store     storage.Repository
	locker    storage.AdvisoryLocker
	producer  llm.Producer
	reviewer  llm.Reviewer
	source    marketdata.Source
	notifier  alerting.Notifier
	briefing  *ContextBuilder
	extractor *learning.Extractor
	analyzer  *learning.Analyzer
	logger    zerolog.Logger

	pending *model.Forecast
}

// NewRunner constructs the lifecycle runner for one timeframe.
func NewRunner(deps Deps, tf config.Timeframe) *Runner {
	return &Runner{
		tf:        tf,
		cfg:       deps.Config,
		store:     deps.Store,
		locker:    deps.Locker,
		producer:  deps.Producer,
		reviewer:  deps.Reviewer,
		source:    deps.Source,
		notifier:  deps.Notifier,
		briefing:  NewContextBuilder(deps.Store, deps.Source, deps.Config),
		extractor: learning.NewExtractor(deps.Config.ExtremeThreshold),
		analyzer:  learning.NewAnalyzer(),
		logger:    deps.Logger.With().Str("component", "engine").Str("timeframe", tf.Name).Logger(),
	}
}

// Run recovers any cycle interrupted by a restart, then paces ticks until the
// context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Resume(ctx); err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return err
		}
		r.logger.Error().Err(err).Msg("recovery left previous cycle unfinished")
	}

	sched := scheduler.New(scheduler.Options{
		Name:         r.tf.Name,
		Interval:     r.tf.Duration,
		AlignToStart: r.cfg.AlignToBucket,
		StartupDelay: r.cfg.StartupDelay,
	}, r.logger)
	return sched.Run(ctx, r.Tick)
}

// Tick runs one scheduling step: resolve the due forecast, then create the
// next one. When the pending forecast cannot be resolved yet, no new cycle
// opens; one forecast per timeframe is in flight at any time.
func (r *Runner) Tick(ctx context.Context, tick time.Time) error {
	if r.pending != nil {
		if err := r.resolveDue(ctx, tick); err != nil {
			return err
		}
		if r.pending != nil {
			r.logger.Warn().Str("forecast_id", r.pending.ID).
				Msg("previous forecast still unresolved, skipping new cycle")
			return nil
		}
	}
	return r.startCycle(ctx, tick)
}

// Resume picks up the latest persisted forecast after a restart. A cycle
// interrupted before its outcome wait is closed as FAILED rather than
// silently replayed; anything at AWAITING_OUTCOME or later continues from the
// highest durable state.
func (r *Runner) Resume(ctx context.Context) error {
	f, err := r.store.LatestForecast(ctx, r.tf.Name)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if f.State.Terminal() {
		return nil
	}

	now := time.Now().UTC()
	switch f.State {
	case model.StateCreated, model.StateReviewed:
		r.logger.Warn().Str("forecast_id", f.ID).Str("state", string(f.State)).
			Msg("closing forecast interrupted mid-cycle")
		if err := r.store.UpdateForecastState(ctx, f.ID, model.StateFailed, "interrupted by restart"); err != nil {
			return err
		}
		r.notify(ctx, alerting.EventCycleFailed, f.ID, "cycle interrupted by restart", now)
		return nil
	case model.StateAwaitingOutcome:
		r.pending = &f
		if now.Before(f.Deadline) {
			r.logger.Info().Str("forecast_id", f.ID).Time("deadline", f.Deadline).
				Msg("resuming outcome wait")
			return nil
		}
		return r.resolveDue(ctx, now)
	case model.StateResolved, model.StateScored:
		return r.finishResolved(ctx, f)
	}
	return nil
}

func (r *Runner) startCycle(ctx context.Context, tick time.Time) error {
	briefing, err := r.briefing.Build(ctx, r.tf)
	if err != nil {
		return fmt.Errorf("build briefing: %w", err)
	}

	proposal, err := r.produce(ctx, briefing)
	if err != nil {
		r.notify(ctx, alerting.EventCycleFailed, "",
			fmt.Sprintf("no forecast produced: %s", failureReason(err)), tick)
		return fmt.Errorf("produce forecast: %w", err)
	}

	f := model.Forecast{
		ID:          uuid.NewString(),
		Timeframe:   r.tf.Name,
		CreatedAt:   tick.UTC(),
		Deadline:    tick.Add(r.tf.Duration).UTC(),
		EntryPrice:  briefing.CurrentPrice,
		Direction:   proposal.Direction,
		TargetPrice: proposal.Target,
		Confidence:  proposal.Confidence,
		Rationale:   proposal.Rationale,
		Context:     briefing.Snapshot(),
		State:       model.StateCreated,
	}
	if err := r.store.InsertForecast(ctx, f); err != nil {
		return err
	}

	r.logger.Info().Str("forecast_id", f.ID).
		Str("direction", string(f.Direction)).
		Str("target", f.TargetPrice.String()).
		Float64("confidence", f.Confidence).
		Msg("forecast created")

	assessment, err := r.review(ctx, f, briefing)
	if err != nil {
		reason := failureReason(err)
		if stateErr := r.store.UpdateForecastState(ctx, f.ID, model.StateFailed, reason); stateErr != nil {
			return stateErr
		}
		r.notify(ctx, alerting.EventCycleFailed, f.ID, reason, tick)
		return fmt.Errorf("review forecast: %w", err)
	}

	review := model.Review{
		ForecastID: f.ID,
		Agreement:  assessment.Agreement,
		Confidence: assessment.Confidence,
		Concerns:   assessment.Concerns,
		Veto:       assessment.Veto,
		CreatedAt:  time.Now().UTC(),
	}
	review.Consensus = consensus.Evaluate(f, review, r.cfg.StrongThreshold)

	if err := r.store.InsertReview(ctx, review); err != nil && !errors.Is(err, model.ErrImmutableViolation) {
		return err
	}
	if err := r.store.UpdateForecastState(ctx, f.ID, model.StateReviewed, ""); err != nil {
		return err
	}

	r.logger.Info().Str("forecast_id", f.ID).
		Str("consensus", string(review.Consensus)).
		Bool("veto", review.Veto).
		Msg("forecast reviewed")

	if review.Veto {
		r.notify(ctx, alerting.EventVeto, f.ID,
			fmt.Sprintf("reviewer vetoed %s forecast: %s", f.Direction, firstConcern(review)), tick)
	}

	if err := r.store.UpdateForecastState(ctx, f.ID, model.StateAwaitingOutcome, ""); err != nil {
		return err
	}
	f.State = model.StateAwaitingOutcome
	r.pending = &f
	return nil
}

// resolveDue settles the pending forecast once its deadline has passed:
// outcome, score, learning, and the meta-analysis check, in that order. Each
// stage is durable before the next starts, so a crash resumes mid-sequence.
func (r *Runner) resolveDue(ctx context.Context, now time.Time) error {
	p := r.pending
	if p == nil || now.Before(p.Deadline) {
		return nil
	}

	price, err := r.resolvePrice(ctx, p.Deadline)
	if err != nil {
		if errors.Is(err, model.ErrPriceUnavailable) {
			r.logger.Warn().Str("forecast_id", p.ID).Err(err).
				Msg("realized price unavailable, will retry")
			return nil
		}
		return err
	}

	outcome := model.Outcome{
		ForecastID:       p.ID,
		ResolvedAt:       now.UTC(),
		RealizedPrice:    price,
		CorrectDirection: scoring.DirectionCorrect(*p, price, r.cfg.FlatEpsilonPct),
	}
	if err := r.store.InsertOutcome(ctx, outcome); err != nil && !errors.Is(err, model.ErrImmutableViolation) {
		return err
	}
	if err := r.store.UpdateForecastState(ctx, p.ID, model.StateResolved, ""); err != nil {
		return err
	}
	p.State = model.StateResolved

	r.logger.Info().Str("forecast_id", p.ID).
		Str("realized", price.String()).
		Bool("correct", outcome.CorrectDirection).
		Msg("forecast resolved")

	if err := r.finishResolved(ctx, *p); err != nil {
		return err
	}
	r.pending = nil
	return nil
}

// finishResolved takes a forecast from RESOLVED through scoring and learning
// to its terminal state. The stored outcome is authoritative; an insert that
// lost a race earlier never shadows it.
func (r *Runner) finishResolved(ctx context.Context, f model.Forecast) error {
	outcome, err := r.store.GetOutcome(ctx, f.ID)
	if err != nil {
		return err
	}

	score, err := scoring.Score(f, outcome)
	if err != nil {
		if stateErr := r.store.UpdateForecastState(ctx, f.ID, model.StateFailed, failureReason(err)); stateErr != nil {
			return stateErr
		}
		r.notify(ctx, alerting.EventCycleFailed, f.ID, failureReason(err), outcome.ResolvedAt)
		return err
	}

	if f.State == model.StateResolved {
		if err := r.store.InsertScore(ctx, score); err != nil && !errors.Is(err, model.ErrImmutableViolation) {
			return err
		}
		if err := r.store.UpdateForecastState(ctx, f.ID, model.StateScored, ""); err != nil {
			return err
		}
		f.State = model.StateScored

		r.logger.Info().Str("forecast_id", f.ID).
			Str("price_error", score.PriceError.String()).
			Float64("calibration_error", score.CalibrationError).
			Msg("forecast scored")
	}

	review, err := r.store.GetReview(ctx, f.ID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}

	if l, ok := r.extractor.Extract(f, review, score, time.Now().UTC()); ok {
		inserted, err := r.store.InsertLearning(ctx, l)
		if err != nil {
			return err
		}
		if err := r.store.UpdateForecastState(ctx, f.ID, model.StateLearned, ""); err != nil {
			return err
		}
		if inserted {
			r.logger.Info().Str("forecast_id", f.ID).
				Str("kind", string(l.Kind)).
				Str("condition", l.Condition).
				Msg("learning extracted")
		}
	} else {
		if err := r.store.UpdateForecastState(ctx, f.ID, model.StateClosed, ""); err != nil {
			return err
		}
	}

	return r.maybeRunMeta(ctx)
}

// maybeRunMeta fires the analyzer whenever the scored count crosses a
// multiple of the configured interval.
func (r *Runner) maybeRunMeta(ctx context.Context) error {
	count, err := r.store.CountScored(ctx, r.tf.Name)
	if err != nil {
		return err
	}
	if count == 0 || count%r.cfg.MetaInterval != 0 {
		return nil
	}
	return r.RunMeta(ctx, time.Now().UTC())
}

// RunMeta runs one meta-analysis pass over the timeframe's full learning set.
// The advisory lock keeps concurrent deployments from double-running; the
// support-key constraint makes re-runs over an unchanged set no-ops either
// way.
func (r *Runner) RunMeta(ctx context.Context, now time.Time) error {
	if r.locker != nil {
		unlock, acquired, err := r.locker.TryAdvisoryLock(ctx, r.lockKey())
		if err != nil {
			return err
		}
		if !acquired {
			r.logger.Info().Msg("meta-analysis already running elsewhere")
			return nil
		}
		defer unlock()
	}

	learnings, err := r.store.ListLearnings(ctx, r.tf.Name)
	if err != nil {
		return err
	}

	for _, rule := range r.analyzer.Analyze(learnings, now) {
		inserted, err := r.store.InsertMetaRule(ctx, rule)
		if err != nil {
			return err
		}
		if inserted {
			r.logger.Info().Str("rule_id", rule.ID).
				Int("support", len(rule.SupportIDs)).
				Msg("meta-rule created")
			r.notify(ctx, alerting.EventMetaRule, "", rule.Pattern, now)
		}
	}
	return nil
}

func (r *Runner) produce(ctx context.Context, b model.Briefing) (llm.Proposal, error) {
	var proposal llm.Proposal
	operation := func() error {
		p, err := r.producer.Produce(ctx, b)
		if err != nil {
			if errors.Is(err, model.ErrMalformedForecast) {
				return backoff.Permanent(err)
			}
			return err
		}
		proposal = p
		return nil
	}
	if err := backoff.Retry(operation, r.retryPolicy(ctx)); err != nil {
		return llm.Proposal{}, err
	}
	return proposal, nil
}

func (r *Runner) review(ctx context.Context, f model.Forecast, b model.Briefing) (llm.Assessment, error) {
	var assessment llm.Assessment
	operation := func() error {
		a, err := r.reviewer.Review(ctx, f, b)
		if err != nil {
			if errors.Is(err, model.ErrMalformedReview) {
				return backoff.Permanent(err)
			}
			return err
		}
		assessment = a
		return nil
	}
	if err := backoff.Retry(operation, r.retryPolicy(ctx)); err != nil {
		return llm.Assessment{}, err
	}
	return assessment, nil
}

func (r *Runner) retryPolicy(ctx context.Context) backoff.BackOffContext {
	attempts := r.cfg.MaxModelAttempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), attempts-1), ctx)
}

// resolvePrice fetches the closing price of the candle covering the deadline,
// pausing ResolveRetryInterval between in-tick attempts.
func (r *Runner) resolvePrice(ctx context.Context, deadline time.Time) (decimal.Decimal, error) {
	var lastErr error
	for attempt := 0; attempt < resolveAttemptsPerTick; attempt++ {
		if attempt > 0 {
			if err := scheduler.WaitUntil(ctx, time.Now().Add(r.cfg.ResolveRetryInterval)); err != nil {
				return decimal.Decimal{}, err
			}
		}
		price, err := r.source.PriceAt(ctx, deadline, r.tf.Name)
		if err == nil {
			return price, nil
		}
		if !errors.Is(err, model.ErrPriceUnavailable) {
			return decimal.Decimal{}, err
		}
		lastErr = err
	}
	return decimal.Decimal{}, lastErr
}

func (r *Runner) lockKey() int64 {
	h := fnv.New32a()
	h.Write([]byte(r.tf.Name))
	return r.cfg.AdvisoryLockBase + int64(h.Sum32())
}

func (r *Runner) notify(ctx context.Context, kind alerting.EventKind, forecastID, detail string, at time.Time) {
	if r.notifier == nil {
		return
	}
	event := alerting.Event{
		Kind:       kind,
		Timeframe:  r.tf.Name,
		ForecastID: forecastID,
		Detail:     detail,
		At:         at,
	}
	if err := r.notifier.Notify(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("kind", string(kind)).Msg("operator alert failed")
	}
}

func firstConcern(review model.Review) string {
	if len(review.Concerns) == 0 {
		return "no concern given"
	}
	return review.Concerns[0]
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrMalformedForecast):
		return "malformed forecast"
	case errors.Is(err, model.ErrMalformedReview):
		return "malformed review"
	case errors.Is(err, model.ErrProducerUnavailable):
		return "producer unavailable"
	case errors.Is(err, model.ErrReviewerUnavailable):
		return "reviewer unavailable"
	case errors.Is(err, model.ErrPriceUnavailable):
		return "price unavailable"
	case errors.Is(err, model.ErrInvalidOutcome):
		return "invalid outcome"
	default:
		return "internal error"
	}
}
