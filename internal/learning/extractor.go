package learning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

// DefaultExtremeThreshold marks forecasts at or above this confidence as
// extreme, the only ones worth extracting a learning from.
const DefaultExtremeThreshold = 0.80

var (
	errTight = decimal.NewFromFloat(0.002)
	errWide  = decimal.NewFromFloat(0.01)
)

// Extractor derives learnings from scored extreme forecasts. Extraction is a
// pure template over the inputs, so identical inputs always yield identical
// conditions and guidance.
type Extractor struct {
	threshold float64
}

// NewExtractor builds an extractor with the given extreme-confidence
// threshold. Non-positive thresholds fall back to the default.
func NewExtractor(threshold float64) *Extractor {
	if threshold <= 0 {
		threshold = DefaultExtremeThreshold
	}
	return &Extractor{threshold: threshold}
}

// Extreme reports whether a forecast qualifies for learning extraction.
func (e *Extractor) Extreme(f model.Forecast) bool {
	return f.Confidence >= e.threshold
}

// Extract returns the learning for an extreme scored forecast, or ok=false
// when the forecast is not extreme.
func (e *Extractor) Extract(f model.Forecast, r model.Review, score model.CalibrationScore, now time.Time) (model.Learning, bool) {
	if !e.Extreme(f) {
		return model.Learning{}, false
	}

	kind := model.LearningReinforcement
	if !score.DirectionCorrect {
		kind = model.LearningCaution
	}

	condition := Condition(f, r, score, kind)

	return model.Learning{
		ID:               uuid.NewString(),
		Timeframe:        f.Timeframe,
		SourceForecastID: f.ID,
		Kind:             kind,
		Condition:        condition,
		Guidance:         guidance(f, score, kind),
		CreatedAt:        now.UTC(),
	}, true
}

// Condition summarises when the forecast went wrong or right, banded so
// recurring situations collapse onto the same string. The meta-analyzer
// groups learnings by this value.
func Condition(f model.Forecast, r model.Review, score model.CalibrationScore, kind model.LearningKind) string {
	return fmt.Sprintf("%s|%s|%s|conf:%s|err:%s|consensus:%s",
		f.Timeframe, kind, f.Direction, confidenceBand(f.Confidence), errorBand(score.PriceError), r.Consensus)
}

func confidenceBand(c float64) string {
	if c >= 0.9 {
		return "very-high"
	}
	return "high"
}

func errorBand(priceError decimal.Decimal) string {
	switch {
	case priceError.LessThanOrEqual(errTight):
		return "tight"
	case priceError.LessThanOrEqual(errWide):
		return "moderate"
	default:
		return "large"
	}
}

func guidance(f model.Forecast, score model.CalibrationScore, kind model.LearningKind) string {
	band := errorBand(score.PriceError)
	if kind == model.LearningCaution {
		return fmt.Sprintf(
			"Avoid %s calls at %s confidence on the %s timeframe: the move went the other way with a %s target miss.",
			f.Direction, confidenceBand(f.Confidence), f.Timeframe, band)
	}
	return fmt.Sprintf(
		"%s calls at %s confidence on the %s timeframe held up with a %s target error; similar setups reliably predict the move.",
		f.Direction, confidenceBand(f.Confidence), f.Timeframe, band)
}
