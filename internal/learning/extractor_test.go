package learning

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

func extremeForecast(confidence float64) model.Forecast {
	return model.Forecast{
		ID:         "f1",
		Timeframe:  "5m",
		Direction:  model.DirectionUp,
		Confidence: confidence,
	}
}

func TestExtractCautionFromWrongExtremeForecast(t *testing.T) {
	e := NewExtractor(DefaultExtremeThreshold)
	f := extremeForecast(0.95)
	r := model.Review{ForecastID: "f1", Consensus: model.ConsensusStrong}
	score := model.CalibrationScore{ForecastID: "f1", DirectionCorrect: false, PriceError: decimal.NewFromFloat(0.02)}

	l, ok := e.Extract(f, r, score, time.Now())
	if !ok {
		t.Fatal("a wrong 0.95-confidence forecast must yield a learning")
	}
	if l.Kind != model.LearningCaution {
		t.Fatalf("kind = %s, want caution", l.Kind)
	}
	if l.SourceForecastID != "f1" {
		t.Fatalf("source forecast id = %s, want f1", l.SourceForecastID)
	}
	if l.Condition == "" || l.Guidance == "" {
		t.Fatal("condition and guidance must be populated")
	}
}

func TestExtractReinforcementFromCorrectExtremeForecast(t *testing.T) {
	e := NewExtractor(DefaultExtremeThreshold)
	f := extremeForecast(0.85)
	r := model.Review{ForecastID: "f1", Consensus: model.ConsensusStrong}
	score := model.CalibrationScore{ForecastID: "f1", DirectionCorrect: true, PriceError: decimal.NewFromFloat(0.001)}

	l, ok := e.Extract(f, r, score, time.Now())
	if !ok {
		t.Fatal("a correct 0.85-confidence forecast must yield a learning")
	}
	if l.Kind != model.LearningReinforcement {
		t.Fatalf("kind = %s, want reinforcement", l.Kind)
	}
}

func TestExtractSkipsModerateConfidence(t *testing.T) {
	e := NewExtractor(DefaultExtremeThreshold)
	f := extremeForecast(0.4)
	score := model.CalibrationScore{ForecastID: "f1", DirectionCorrect: false, PriceError: decimal.NewFromFloat(0.05)}

	if _, ok := e.Extract(f, model.Review{}, score, time.Now()); ok {
		t.Fatal("a 0.4-confidence miss is not extreme and must not yield a learning")
	}
}

func TestExtractThresholdBoundary(t *testing.T) {
	e := NewExtractor(DefaultExtremeThreshold)

	if !e.Extreme(extremeForecast(0.80)) {
		t.Fatal("confidence exactly at the threshold counts as extreme")
	}
	if e.Extreme(extremeForecast(0.7999)) {
		t.Fatal("confidence below the threshold is not extreme")
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	e := NewExtractor(DefaultExtremeThreshold)
	f := extremeForecast(0.92)
	r := model.Review{ForecastID: "f1", Consensus: model.ConsensusDisagreement}
	score := model.CalibrationScore{ForecastID: "f1", DirectionCorrect: false, PriceError: decimal.NewFromFloat(0.004)}
	now := time.Now()

	a, _ := e.Extract(f, r, score, now)
	b, _ := e.Extract(f, r, score, now)

	if a.Condition != b.Condition {
		t.Fatalf("conditions differ across identical inputs: %q vs %q", a.Condition, b.Condition)
	}
	if a.Guidance != b.Guidance {
		t.Fatalf("guidance differs across identical inputs: %q vs %q", a.Guidance, b.Guidance)
	}
	if a.Kind != b.Kind {
		t.Fatalf("kind differs across identical inputs: %s vs %s", a.Kind, b.Kind)
	}
}

func TestConditionBandsCollapseSimilarSituations(t *testing.T) {
	r := model.Review{Consensus: model.ConsensusStrong}
	scoreA := model.CalibrationScore{DirectionCorrect: false, PriceError: decimal.NewFromFloat(0.02)}
	scoreB := model.CalibrationScore{DirectionCorrect: false, PriceError: decimal.NewFromFloat(0.05)}

	condA := Condition(extremeForecast(0.95), r, scoreA, model.LearningCaution)
	condB := Condition(extremeForecast(0.97), r, scoreB, model.LearningCaution)

	if condA != condB {
		t.Fatalf("banded conditions should collapse similar situations: %q vs %q", condA, condB)
	}
}
