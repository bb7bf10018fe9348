package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"btc-predictor/internal/model"
)

// Memory is an in-process Repository with the same write semantics as the
// Postgres store: immutable records reject overwrites, learnings deduplicate
// by source forecast, meta-rules by support key. It backs the simulate
// command, which runs a full cycle without a database.
type Memory struct {
	mu        sync.Mutex
	forecasts map[string]model.Forecast
	order     []string
	reviews   map[string]model.Review
	outcomes  map[string]model.Outcome
	scores    map[string]model.CalibrationScore
	learnings []model.Learning
	bySource  map[string]bool
	metaRules []model.MetaRule
	byKey     map[string]bool
}

// NewMemory constructs an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		forecasts: make(map[string]model.Forecast),
		reviews:   make(map[string]model.Review),
		outcomes:  make(map[string]model.Outcome),
		scores:    make(map[string]model.CalibrationScore),
		bySource:  make(map[string]bool),
		byKey:     make(map[string]bool),
	}
}

func (m *Memory) InsertForecast(_ context.Context, f model.Forecast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.forecasts[f.ID]; exists {
		return fmt.Errorf("forecast %s: %w", f.ID, model.ErrImmutableViolation)
	}
	m.forecasts[f.ID] = f
	m.order = append(m.order, f.ID)
	return nil
}

func (m *Memory) UpdateForecastState(_ context.Context, id string, state model.State, failure string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, exists := m.forecasts[id]
	if !exists {
		return fmt.Errorf("forecast %s: %w", id, model.ErrNotFound)
	}
	f.State = state
	f.Failure = failure
	m.forecasts[id] = f
	return nil
}

func (m *Memory) GetForecast(_ context.Context, id string) (model.Forecast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, exists := m.forecasts[id]
	if !exists {
		return model.Forecast{}, model.ErrNotFound
	}
	return f, nil
}

func (m *Memory) LatestForecast(_ context.Context, timeframe string) (model.Forecast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		latest model.Forecast
		found  bool
	)
	for _, id := range m.order {
		f := m.forecasts[id]
		if f.Timeframe != timeframe {
			continue
		}
		if !found || f.CreatedAt.After(latest.CreatedAt) {
			latest = f
			found = true
		}
	}
	if !found {
		return model.Forecast{}, model.ErrNotFound
	}
	return latest, nil
}

func (m *Memory) InsertReview(_ context.Context, r model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reviews[r.ForecastID]; exists {
		return fmt.Errorf("review for forecast %s: %w", r.ForecastID, model.ErrImmutableViolation)
	}
	m.reviews[r.ForecastID] = r
	return nil
}

func (m *Memory) GetReview(_ context.Context, forecastID string) (model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, exists := m.reviews[forecastID]
	if !exists {
		return model.Review{}, fmt.Errorf("review for forecast %s: %w", forecastID, model.ErrNotFound)
	}
	return r, nil
}

func (m *Memory) InsertOutcome(_ context.Context, o model.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.outcomes[o.ForecastID]; exists {
		return fmt.Errorf("outcome for forecast %s: %w", o.ForecastID, model.ErrImmutableViolation)
	}
	m.outcomes[o.ForecastID] = o
	return nil
}

func (m *Memory) GetOutcome(_ context.Context, forecastID string) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, exists := m.outcomes[forecastID]
	if !exists {
		return model.Outcome{}, fmt.Errorf("outcome for forecast %s: %w", forecastID, model.ErrNotFound)
	}
	return o, nil
}

func (m *Memory) InsertScore(_ context.Context, score model.CalibrationScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scores[score.ForecastID]; exists {
		return fmt.Errorf("score for forecast %s: %w", score.ForecastID, model.ErrImmutableViolation)
	}
	m.scores[score.ForecastID] = score
	return nil
}

func (m *Memory) GetScore(_ context.Context, forecastID string) (model.CalibrationScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, exists := m.scores[forecastID]
	if !exists {
		return model.CalibrationScore{}, fmt.Errorf("score for forecast %s: %w", forecastID, model.ErrNotFound)
	}
	return score, nil
}

func (m *Memory) CountScored(_ context.Context, timeframe string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for id := range m.scores {
		if f, exists := m.forecasts[id]; exists && f.Timeframe == timeframe {
			count++
		}
	}
	return count, nil
}

func (m *Memory) InsertLearning(_ context.Context, l model.Learning) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bySource[l.SourceForecastID] {
		return false, nil
	}
	m.bySource[l.SourceForecastID] = true
	m.learnings = append(m.learnings, l)
	return true, nil
}

func (m *Memory) ListRecentLearnings(_ context.Context, timeframe string, limit int) ([]model.Learning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.timeframeLearnings(timeframe)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) ListLearnings(_ context.Context, timeframe string) ([]model.Learning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.timeframeLearnings(timeframe)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (m *Memory) InsertMetaRule(_ context.Context, rule model.MetaRule) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rule.SupportKey()
	if m.byKey[key] {
		return false, nil
	}
	m.byKey[key] = true
	m.metaRules = append(m.metaRules, rule)
	return true, nil
}

func (m *Memory) ListMetaRules(_ context.Context, timeframe string) ([]model.MetaRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := make([]model.MetaRule, 0)
	for _, rule := range m.metaRules {
		if rule.Timeframe == timeframe {
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func (m *Memory) TrackRecord(_ context.Context) (model.TrackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	track := model.TrackRecord{
		Total:           int64(len(m.forecasts)),
		Resolved:        int64(len(m.outcomes)),
		ActiveMetaRules: int64(len(m.metaRules)),
	}

	var priceErrSum, calibSum float64
	for _, score := range m.scores {
		if score.DirectionCorrect {
			track.Correct++
		}
		priceErrSum += score.PriceError.InexactFloat64()
		calibSum += score.CalibrationError
	}
	if len(m.scores) > 0 {
		track.AvgPriceError = priceErrSum / float64(len(m.scores))
		track.AvgCalibration = calibSum / float64(len(m.scores))
	}
	if track.Resolved > 0 {
		track.AccuracyPct = float64(track.Correct) / float64(track.Resolved) * 100
	}
	return track, nil
}

// Forecasts returns every stored forecast in insertion order.
func (m *Memory) Forecasts() []model.Forecast {
	m.mu.Lock()
	defer m.mu.Unlock()
	forecasts := make([]model.Forecast, 0, len(m.order))
	for _, id := range m.order {
		forecasts = append(forecasts, m.forecasts[id])
	}
	return forecasts
}

func (m *Memory) timeframeLearnings(timeframe string) []model.Learning {
	matched := make([]model.Learning, 0, len(m.learnings))
	for _, l := range m.learnings {
		if l.Timeframe == timeframe {
			matched = append(matched, l)
		}
	}
	return matched
}

var _ Repository = (*Memory)(nil)
