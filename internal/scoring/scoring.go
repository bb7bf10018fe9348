package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

// DefaultFlatEpsilonPct treats moves within 0.05% of the entry price as flat.
const DefaultFlatEpsilonPct = 0.05

var dec100 = decimal.NewFromInt(100)

// RealizedDirection classifies the realized move relative to the entry price.
// Moves within epsilonPct percent of the entry count as FLAT.
func RealizedDirection(entry, realized decimal.Decimal, epsilonPct float64) model.Direction {
	if epsilonPct <= 0 {
		epsilonPct = DefaultFlatEpsilonPct
	}
	epsilon := entry.Abs().Mul(decimal.NewFromFloat(epsilonPct)).Div(dec100)

	diff := realized.Sub(entry)
	if diff.Abs().LessThanOrEqual(epsilon) {
		return model.DirectionFlat
	}
	if diff.Sign() > 0 {
		return model.DirectionUp
	}
	return model.DirectionDown
}

// DirectionCorrect reports whether the forecast direction matches the
// realized move.
func DirectionCorrect(f model.Forecast, realized decimal.Decimal, epsilonPct float64) bool {
	return f.Direction == RealizedDirection(f.EntryPrice, realized, epsilonPct)
}

// Score derives the calibration metrics for a resolved forecast. The
// computation is pure; a zero realized price is a data error, never scored.
func Score(f model.Forecast, o model.Outcome) (model.CalibrationScore, error) {
	if o.RealizedPrice.IsZero() {
		return model.CalibrationScore{}, fmt.Errorf("realized price is zero for forecast %s: %w", f.ID, model.ErrInvalidOutcome)
	}

	priceError := f.TargetPrice.Sub(o.RealizedPrice).Abs().Div(o.RealizedPrice.Abs())

	calibration := f.Confidence
	if o.CorrectDirection {
		calibration = 1 - f.Confidence
	}
	if calibration < 0 {
		calibration = -calibration
	}

	return model.CalibrationScore{
		ForecastID:       f.ID,
		DirectionCorrect: o.CorrectDirection,
		PriceError:       priceError,
		CalibrationError: calibration,
	}, nil
}
