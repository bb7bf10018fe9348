package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

func TestScoreWrongDirection(t *testing.T) {
	f := model.Forecast{
		ID:          "f1",
		EntryPrice:  decimal.NewFromInt(68000),
		Direction:   model.DirectionUp,
		TargetPrice: decimal.NewFromInt(70000),
		Confidence:  0.9,
	}
	o := model.Outcome{
		ForecastID:       "f1",
		RealizedPrice:    decimal.NewFromInt(69000),
		CorrectDirection: false,
	}

	score, err := Score(f, o)
	if err != nil {
		t.Fatalf("score should succeed: %v", err)
	}

	wantPriceError := 1000.0 / 69000.0
	if got, _ := score.PriceError.Float64(); math.Abs(got-wantPriceError) > 1e-9 {
		t.Fatalf("price error = %v, want %v", got, wantPriceError)
	}
	if math.Abs(score.CalibrationError-0.9) > 1e-9 {
		t.Fatalf("calibration error for a wrong 0.9 call = %v, want 0.9", score.CalibrationError)
	}
}

func TestScoreCorrectDirection(t *testing.T) {
	f := model.Forecast{
		ID:          "f1",
		EntryPrice:  decimal.NewFromInt(68000),
		Direction:   model.DirectionUp,
		TargetPrice: decimal.NewFromInt(70000),
		Confidence:  0.9,
	}
	o := model.Outcome{
		ForecastID:       "f1",
		RealizedPrice:    decimal.NewFromInt(69000),
		CorrectDirection: true,
	}

	score, err := Score(f, o)
	if err != nil {
		t.Fatalf("score should succeed: %v", err)
	}
	if math.Abs(score.CalibrationError-0.1) > 1e-9 {
		t.Fatalf("calibration error for a correct 0.9 call = %v, want 0.1", score.CalibrationError)
	}
}

func TestScoreZeroRealizedPrice(t *testing.T) {
	f := model.Forecast{ID: "f1", TargetPrice: decimal.NewFromInt(70000), Confidence: 0.5}
	o := model.Outcome{ForecastID: "f1", RealizedPrice: decimal.Zero}

	if _, err := Score(f, o); !errors.Is(err, model.ErrInvalidOutcome) {
		t.Fatalf("zero realized price must yield ErrInvalidOutcome, got %v", err)
	}
}

func TestCalibrationErrorStaysInUnitInterval(t *testing.T) {
	for _, confidence := range []float64{0, 0.25, 0.5, 0.75, 1} {
		for _, correct := range []bool{true, false} {
			f := model.Forecast{ID: "f", TargetPrice: decimal.NewFromInt(100), Confidence: confidence}
			o := model.Outcome{ForecastID: "f", RealizedPrice: decimal.NewFromInt(100), CorrectDirection: correct}
			score, err := Score(f, o)
			if err != nil {
				t.Fatalf("score failed: %v", err)
			}
			if score.CalibrationError < 0 || score.CalibrationError > 1 {
				t.Fatalf("calibration error %v out of [0,1] for confidence=%v correct=%v",
					score.CalibrationError, confidence, correct)
			}
		}
	}
}

func TestRealizedDirectionFlatEpsilon(t *testing.T) {
	entry := decimal.NewFromInt(100000)

	// 0.05% of 100000 is 50.
	cases := []struct {
		realized int64
		want     model.Direction
	}{
		{100000, model.DirectionFlat},
		{100050, model.DirectionFlat},
		{99950, model.DirectionFlat},
		{100051, model.DirectionUp},
		{99949, model.DirectionDown},
	}
	for _, tc := range cases {
		got := RealizedDirection(entry, decimal.NewFromInt(tc.realized), DefaultFlatEpsilonPct)
		if got != tc.want {
			t.Fatalf("realized %d: direction = %s, want %s", tc.realized, got, tc.want)
		}
	}
}

func TestDirectionCorrect(t *testing.T) {
	f := model.Forecast{
		EntryPrice: decimal.NewFromInt(100000),
		Direction:  model.DirectionFlat,
	}
	if !DirectionCorrect(f, decimal.NewFromInt(100030), DefaultFlatEpsilonPct) {
		t.Fatal("a move inside the epsilon band should confirm a FLAT call")
	}
	if DirectionCorrect(f, decimal.NewFromInt(101000), DefaultFlatEpsilonPct) {
		t.Fatal("a large move should not confirm a FLAT call")
	}
}
