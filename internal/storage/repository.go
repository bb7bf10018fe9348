package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

const (
	insertForecastSQL = `INSERT INTO forecasts (
        id, timeframe, created_at, deadline, entry_price, direction,
        target_price, confidence, rationale, context_snapshot, state, failure
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    ON CONFLICT (id) DO NOTHING;`

	updateForecastStateSQL = `UPDATE forecasts
    SET state = $2, failure = $3
    WHERE id = $1;`

	forecastColumns = `id, timeframe, created_at, deadline, entry_price, direction,
        target_price, confidence, rationale, context_snapshot, state, failure`

	getForecastSQL = `SELECT ` + forecastColumns + ` FROM forecasts WHERE id = $1;`

	latestForecastSQL = `SELECT ` + forecastColumns + ` FROM forecasts
    WHERE timeframe = $1
    ORDER BY created_at DESC
    LIMIT 1;`

	insertReviewSQL = `INSERT INTO reviews (
        forecast_id, agreement, confidence, concerns, veto, consensus, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (forecast_id) DO NOTHING;`

	getReviewSQL = `SELECT forecast_id, agreement, confidence, concerns, veto, consensus, created_at
    FROM reviews WHERE forecast_id = $1;`

	insertOutcomeSQL = `INSERT INTO outcomes (
        forecast_id, resolved_at, realized_price, correct_direction
    ) VALUES ($1,$2,$3,$4)
    ON CONFLICT (forecast_id) DO NOTHING;`

	getOutcomeSQL = `SELECT forecast_id, resolved_at, realized_price, correct_direction
    FROM outcomes WHERE forecast_id = $1;`

	insertScoreSQL = `INSERT INTO scores (
        forecast_id, direction_correct, price_error, calibration_error
    ) VALUES ($1,$2,$3,$4)
    ON CONFLICT (forecast_id) DO NOTHING;`

	getScoreSQL = `SELECT forecast_id, direction_correct, price_error, calibration_error
    FROM scores WHERE forecast_id = $1;`

	countScoredSQL = `SELECT COUNT(*) FROM scores s
    JOIN forecasts f ON f.id = s.forecast_id
    WHERE f.timeframe = $1;`

	insertLearningSQL = `INSERT INTO learnings (
        id, timeframe, source_forecast_id, kind, condition, guidance, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (source_forecast_id) DO NOTHING;`

	listRecentLearningsSQL = `SELECT id, timeframe, source_forecast_id, kind, condition, guidance, created_at
    FROM learnings
    WHERE timeframe = $1
    ORDER BY created_at DESC
    LIMIT $2;`

	listLearningsSQL = `SELECT id, timeframe, source_forecast_id, kind, condition, guidance, created_at
    FROM learnings
    WHERE timeframe = $1
    ORDER BY created_at;`

	insertMetaRuleSQL = `INSERT INTO meta_rules (
        id, timeframe, support_key, support_ids, pattern, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (support_key) DO NOTHING;`

	listMetaRulesSQL = `SELECT id, timeframe, support_ids, pattern, created_at
    FROM meta_rules
    WHERE timeframe = $1
    ORDER BY created_at;`

	resolvedRowColumns = `f.id, f.timeframe, f.created_at, f.deadline, f.entry_price, f.direction,
        f.target_price, f.confidence, f.rationale, f.context_snapshot, f.state, f.failure,
        o.resolved_at, o.realized_price, o.correct_direction,
        s.price_error, s.calibration_error,
        COALESCE(r.consensus, '')`

	listRecentResolvedSQL = `SELECT ` + resolvedRowColumns + `
    FROM forecasts f
    JOIN outcomes o ON o.forecast_id = f.id
    JOIN scores s ON s.forecast_id = f.id
    LEFT JOIN reviews r ON r.forecast_id = f.id
    ORDER BY f.created_at DESC
    LIMIT $1;`

	listResolvedBetweenSQL = `SELECT ` + resolvedRowColumns + `
    FROM forecasts f
    JOIN outcomes o ON o.forecast_id = f.id
    JOIN scores s ON s.forecast_id = f.id
    LEFT JOIN reviews r ON r.forecast_id = f.id
    WHERE f.created_at >= $1 AND f.created_at < $2
    ORDER BY f.created_at;`

	listFailedForecastsSQL = `SELECT ` + forecastColumns + ` FROM forecasts
    WHERE state = 'FAILED'
    ORDER BY created_at DESC
    LIMIT $1;`

	trackRecordSQL = `SELECT
        (SELECT COUNT(*) FROM forecasts),
        (SELECT COUNT(*) FROM outcomes),
        (SELECT COUNT(*) FROM scores WHERE direction_correct),
        COALESCE((SELECT AVG(price_error) FROM scores), 0),
        COALESCE((SELECT AVG(calibration_error) FROM scores), 0),
        (SELECT COUNT(*) FROM meta_rules);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ResolvedForecast joins a forecast with its outcome, score, and consensus
// for the read-only views.
type ResolvedForecast struct {
	Forecast  model.Forecast
	Outcome   model.Outcome
	Score     model.CalibrationScore
	Consensus model.ConsensusLabel
}

// Repository is the durable-store contract the engine and the read-only
// views depend on.
type Repository interface {
	InsertForecast(ctx context.Context, f model.Forecast) error
	UpdateForecastState(ctx context.Context, id string, state model.State, failure string) error
	GetForecast(ctx context.Context, id string) (model.Forecast, error)
	LatestForecast(ctx context.Context, timeframe string) (model.Forecast, error)
	InsertReview(ctx context.Context, r model.Review) error
	GetReview(ctx context.Context, forecastID string) (model.Review, error)
	InsertOutcome(ctx context.Context, o model.Outcome) error
	GetOutcome(ctx context.Context, forecastID string) (model.Outcome, error)
	InsertScore(ctx context.Context, score model.CalibrationScore) error
	GetScore(ctx context.Context, forecastID string) (model.CalibrationScore, error)
	CountScored(ctx context.Context, timeframe string) (int64, error)
	InsertLearning(ctx context.Context, l model.Learning) (bool, error)
	ListRecentLearnings(ctx context.Context, timeframe string, limit int) ([]model.Learning, error)
	ListLearnings(ctx context.Context, timeframe string) ([]model.Learning, error)
	InsertMetaRule(ctx context.Context, rule model.MetaRule) (bool, error)
	ListMetaRules(ctx context.Context, timeframe string) ([]model.MetaRule, error)
	TrackRecord(ctx context.Context) (model.TrackRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// InsertForecast persists a new forecast. Reusing an existing id is an
// immutable-record violation.
func (s *Store) InsertForecast(ctx context.Context, f model.Forecast) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	snapshot, err := json.Marshal(f.Context)
	if err != nil {
		return fmt.Errorf("encode context snapshot: %w", err)
	}

	tag, execErr := pool.Exec(ctx, insertForecastSQL,
		f.ID, f.Timeframe, f.CreatedAt, f.Deadline,
		f.EntryPrice.String(), string(f.Direction), f.TargetPrice.String(),
		f.Confidence, f.Rationale, snapshot, string(f.State), f.Failure,
	)
	if execErr != nil {
		return fmt.Errorf("insert forecast: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("forecast %s: %w", f.ID, model.ErrImmutableViolation)
	}
	return nil
}

// UpdateForecastState advances the lifecycle state. State and failure are
// the only mutable forecast fields.
func (s *Store) UpdateForecastState(ctx context.Context, id string, state model.State, failure string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, updateForecastStateSQL, id, string(state), failure)
	if execErr != nil {
		return fmt.Errorf("update forecast state: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("forecast %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// GetForecast loads one forecast by id.
func (s *Store) GetForecast(ctx context.Context, id string) (model.Forecast, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.Forecast{}, err
	}
	return scanForecast(pool.QueryRow(ctx, getForecastSQL, id))
}

// LatestForecast returns the most recent forecast for a timeframe,
// regardless of state. Used for crash recovery.
func (s *Store) LatestForecast(ctx context.Context, timeframe string) (model.Forecast, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.Forecast{}, err
	}
	return scanForecast(pool.QueryRow(ctx, latestForecastSQL, timeframe))
}

// InsertReview persists the 1:1 review for a forecast.
func (s *Store) InsertReview(ctx context.Context, r model.Review) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	concerns, err := json.Marshal(r.Concerns)
	if err != nil {
		return fmt.Errorf("encode concerns: %w", err)
	}

	tag, execErr := pool.Exec(ctx, insertReviewSQL,
		r.ForecastID, string(r.Agreement), r.Confidence, concerns, r.Veto,
		string(r.Consensus), r.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert review: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review for forecast %s: %w", r.ForecastID, model.ErrImmutableViolation)
	}
	return nil
}

// GetReview loads the review for a forecast.
func (s *Store) GetReview(ctx context.Context, forecastID string) (model.Review, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.Review{}, err
	}

	var (
		r         model.Review
		agreement string
		concerns  []byte
		consensus string
	)
	row := pool.QueryRow(ctx, getReviewSQL, forecastID)
	if err := row.Scan(&r.ForecastID, &agreement, &r.Confidence, &concerns, &r.Veto, &consensus, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Review{}, fmt.Errorf("review for forecast %s: %w", forecastID, model.ErrNotFound)
		}
		return model.Review{}, fmt.Errorf("get review: %w (%v)", model.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(concerns, &r.Concerns); err != nil {
		return model.Review{}, fmt.Errorf("decode concerns: %w", err)
	}
	r.Agreement = model.Agreement(agreement)
	r.Consensus = model.ConsensusLabel(consensus)
	return r, nil
}

// InsertOutcome persists the realized outcome, exactly once per forecast.
func (s *Store) InsertOutcome(ctx context.Context, o model.Outcome) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, insertOutcomeSQL,
		o.ForecastID, o.ResolvedAt, o.RealizedPrice.String(), o.CorrectDirection,
	)
	if execErr != nil {
		return fmt.Errorf("insert outcome: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outcome for forecast %s: %w", o.ForecastID, model.ErrImmutableViolation)
	}
	return nil
}

// GetOutcome loads the outcome for a forecast.
func (s *Store) GetOutcome(ctx context.Context, forecastID string) (model.Outcome, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.Outcome{}, err
	}

	var (
		o        model.Outcome
		realized string
	)
	row := pool.QueryRow(ctx, getOutcomeSQL, forecastID)
	if err := row.Scan(&o.ForecastID, &o.ResolvedAt, &realized, &o.CorrectDirection); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Outcome{}, fmt.Errorf("outcome for forecast %s: %w", forecastID, model.ErrNotFound)
		}
		return model.Outcome{}, fmt.Errorf("get outcome: %w (%v)", model.ErrStoreUnavailable, err)
	}

	price, err := decimal.NewFromString(realized)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("parse realized price: %w", err)
	}
	o.RealizedPrice = price
	return o, nil
}

// InsertScore persists the calibration score for a resolved forecast.
func (s *Store) InsertScore(ctx context.Context, score model.CalibrationScore) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tag, execErr := pool.Exec(ctx, insertScoreSQL,
		score.ForecastID, score.DirectionCorrect, score.PriceError.String(), score.CalibrationError,
	)
	if execErr != nil {
		return fmt.Errorf("insert score: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("score for forecast %s: %w", score.ForecastID, model.ErrImmutableViolation)
	}
	return nil
}

// GetScore loads the calibration score for a forecast.
func (s *Store) GetScore(ctx context.Context, forecastID string) (model.CalibrationScore, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.CalibrationScore{}, err
	}

	var (
		score      model.CalibrationScore
		priceError string
	)
	row := pool.QueryRow(ctx, getScoreSQL, forecastID)
	if err := row.Scan(&score.ForecastID, &score.DirectionCorrect, &priceError, &score.CalibrationError); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CalibrationScore{}, fmt.Errorf("score for forecast %s: %w", forecastID, model.ErrNotFound)
		}
		return model.CalibrationScore{}, fmt.Errorf("get score: %w (%v)", model.ErrStoreUnavailable, err)
	}

	parsed, err := decimal.NewFromString(priceError)
	if err != nil {
		return model.CalibrationScore{}, fmt.Errorf("parse price error: %w", err)
	}
	score.PriceError = parsed
	return score, nil
}

// CountScored counts scored forecasts for a timeframe. The meta-analysis
// trigger compares this against the configured interval.
func (s *Store) CountScored(ctx context.Context, timeframe string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := pool.QueryRow(ctx, countScoredSQL, timeframe).Scan(&count); err != nil {
		return 0, fmt.Errorf("count scored: %w (%v)", model.ErrStoreUnavailable, err)
	}
	return count, nil
}

// InsertLearning persists a learning. The unique source-forecast constraint
// makes extraction at-most-once per forecast; a duplicate returns false.
func (s *Store) InsertLearning(ctx context.Context, l model.Learning) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, insertLearningSQL,
		l.ID, l.Timeframe, l.SourceForecastID, string(l.Kind), l.Condition, l.Guidance, l.CreatedAt,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert learning: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListRecentLearnings returns the newest learnings for a timeframe.
func (s *Store) ListRecentLearnings(ctx context.Context, timeframe string, limit int) ([]model.Learning, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentLearningsSQL, timeframe, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent learnings: %w (%v)", model.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()
	return collectLearnings(rows)
}

// ListLearnings returns all learnings for a timeframe, oldest first.
func (s *Store) ListLearnings(ctx context.Context, timeframe string) ([]model.Learning, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listLearningsSQL, timeframe)
	if queryErr != nil {
		return nil, fmt.Errorf("list learnings: %w (%v)", model.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()
	return collectLearnings(rows)
}

// InsertMetaRule persists a meta-rule, deduplicated by its supporting-id
// set. Returns false when an identical rule already exists.
func (s *Store) InsertMetaRule(ctx context.Context, rule model.MetaRule) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	ids, err := json.Marshal(rule.SupportIDs)
	if err != nil {
		return false, fmt.Errorf("encode support ids: %w", err)
	}

	tag, execErr := pool.Exec(ctx, insertMetaRuleSQL,
		rule.ID, rule.Timeframe, rule.SupportKey(), ids, rule.Pattern, rule.CreatedAt,
	)
	if execErr != nil {
		return false, fmt.Errorf("insert meta rule: %w (%v)", model.ErrStoreUnavailable, execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// ListMetaRules returns all meta-rules for a timeframe, oldest first.
func (s *Store) ListMetaRules(ctx context.Context, timeframe string) ([]model.MetaRule, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetaRulesSQL, timeframe)
	if queryErr != nil {
		return nil, fmt.Errorf("list meta rules: %w (%v)", model.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()

	rules := make([]model.MetaRule, 0)
	for rows.Next() {
		var (
			rule model.MetaRule
			ids  []byte
		)
		if err := rows.Scan(&rule.ID, &rule.Timeframe, &ids, &rule.Pattern, &rule.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(ids, &rule.SupportIDs); err != nil {
			return nil, fmt.Errorf("decode support ids: %w", err)
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}

// TrackRecord aggregates overall performance for prompts and the status view.
func (s *Store) TrackRecord(ctx context.Context) (model.TrackRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.TrackRecord{}, err
	}

	var track model.TrackRecord
	row := pool.QueryRow(ctx, trackRecordSQL)
	if err := row.Scan(&track.Total, &track.Resolved, &track.Correct,
		&track.AvgPriceError, &track.AvgCalibration, &track.ActiveMetaRules); err != nil {
		return model.TrackRecord{}, fmt.Errorf("track record: %w (%v)", model.ErrStoreUnavailable, err)
	}
	if track.Resolved > 0 {
		track.AccuracyPct = float64(track.Correct) / float64(track.Resolved) * 100
	}
	return track, nil
}

// ListRecentResolved returns the newest resolved-and-scored forecasts.
func (s *Store) ListRecentResolved(ctx context.Context, limit int) ([]ResolvedForecast, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentResolvedSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent resolved: %w (%v)", model.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()
	return collectResolved(rows)
}

// ListResolvedBetween returns resolved forecasts created inside a window,
// oldest first. Used by the export command.
func (s *Store) ListResolvedBetween(ctx context.Context, from, to time.Time) ([]ResolvedForecast, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listResolvedBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list resolved between: %w (%v)", model.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()
	return collectResolved(rows)
}

// ListFailedForecasts returns the newest FAILED cycles with their failure
// kind, for the status view.
func (s *Store) ListFailedForecasts(ctx context.Context, limit int) ([]model.Forecast, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listFailedForecastsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list failed forecasts: %w (%v)", model.ErrStoreUnavailable, queryErr)
	}
	defer rows.Close()

	forecasts := make([]model.Forecast, 0, limit)
	for rows.Next() {
		f, err := scanForecastRow(rows)
		if err != nil {
			return nil, err
		}
		forecasts = append(forecasts, f)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return forecasts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanForecast(row pgx.Row) (model.Forecast, error) {
	f, err := scanForecastRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Forecast{}, model.ErrNotFound
		}
		return model.Forecast{}, err
	}
	return f, nil
}

func scanForecastRow(row rowScanner) (model.Forecast, error) {
	var (
		f         model.Forecast
		entry     string
		direction string
		target    string
		snapshot  []byte
		state     string
	)
	if err := row.Scan(&f.ID, &f.Timeframe, &f.CreatedAt, &f.Deadline, &entry, &direction,
		&target, &f.Confidence, &f.Rationale, &snapshot, &state, &f.Failure); err != nil {
		return model.Forecast{}, err
	}

	var err error
	if f.EntryPrice, err = decimal.NewFromString(entry); err != nil {
		return model.Forecast{}, fmt.Errorf("parse entry price: %w", err)
	}
	if f.TargetPrice, err = decimal.NewFromString(target); err != nil {
		return model.Forecast{}, fmt.Errorf("parse target price: %w", err)
	}
	if err := json.Unmarshal(snapshot, &f.Context); err != nil {
		return model.Forecast{}, fmt.Errorf("decode context snapshot: %w", err)
	}
	f.Direction = model.Direction(direction)
	f.State = model.State(state)
	return f, nil
}

func collectLearnings(rows pgx.Rows) ([]model.Learning, error) {
	learnings := make([]model.Learning, 0)
	for rows.Next() {
		var (
			l    model.Learning
			kind string
		)
		if err := rows.Scan(&l.ID, &l.Timeframe, &l.SourceForecastID, &kind, &l.Condition, &l.Guidance, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Kind = model.LearningKind(kind)
		learnings = append(learnings, l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return learnings, nil
}

func collectResolved(rows pgx.Rows) ([]ResolvedForecast, error) {
	resolved := make([]ResolvedForecast, 0)
	for rows.Next() {
		var (
			rf         ResolvedForecast
			entry      string
			direction  string
			target     string
			snapshot   []byte
			state      string
			realized   string
			priceError string
			consensus  string
		)
		if err := rows.Scan(
			&rf.Forecast.ID, &rf.Forecast.Timeframe, &rf.Forecast.CreatedAt, &rf.Forecast.Deadline,
			&entry, &direction, &target, &rf.Forecast.Confidence, &rf.Forecast.Rationale,
			&snapshot, &state, &rf.Forecast.Failure,
			&rf.Outcome.ResolvedAt, &realized, &rf.Outcome.CorrectDirection,
			&priceError, &rf.Score.CalibrationError,
			&consensus,
		); err != nil {
			return nil, err
		}

		var err error
		if rf.Forecast.EntryPrice, err = decimal.NewFromString(entry); err != nil {
			return nil, fmt.Errorf("parse entry price: %w", err)
		}
		if rf.Forecast.TargetPrice, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("parse target price: %w", err)
		}
		if rf.Score.PriceError, err = decimal.NewFromString(priceError); err != nil {
			return nil, fmt.Errorf("parse price error: %w", err)
		}
		if rf.Outcome.RealizedPrice, err = decimal.NewFromString(realized); err != nil {
			return nil, fmt.Errorf("parse realized price: %w", err)
		}
		if err := json.Unmarshal(snapshot, &rf.Forecast.Context); err != nil {
			return nil, fmt.Errorf("decode context snapshot: %w", err)
		}

		rf.Forecast.Direction = model.Direction(direction)
		rf.Forecast.State = model.State(state)
		rf.Outcome.ForecastID = rf.Forecast.ID
		rf.Score.ForecastID = rf.Forecast.ID
		rf.Score.DirectionCorrect = rf.Outcome.CorrectDirection
		rf.Consensus = model.ConsensusLabel(consensus)
		resolved = append(resolved, rf)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return resolved, nil
}
