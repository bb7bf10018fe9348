package marketdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

func risingCandles(n int, start float64, step float64) []model.Candle {
	candles := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		price := start + float64(i)*step
		candles = append(candles, model.Candle{
			OpenTime: time.Now().Add(-time.Duration(n-i) * 5 * time.Minute),
			Open:     decimal.NewFromFloat(price - step/2),
			High:     decimal.NewFromFloat(price + 10),
			Low:      decimal.NewFromFloat(price - 10),
			Close:    decimal.NewFromFloat(price),
			Volume:   decimal.NewFromInt(100),
		})
	}
	return candles
}

func TestAnalyzeStructureShortHistory(t *testing.T) {
	got := AnalyzeStructure(risingCandles(5, 68000, 10))
	if got.Trend != "UNKNOWN" {
		t.Fatalf("under 12 candles the trend must be UNKNOWN, got %s", got.Trend)
	}
}

func TestAnalyzeStructureUptrend(t *testing.T) {
	got := AnalyzeStructure(risingCandles(288, 68000, 10))

	if got.Trend != "STRONG UPTREND" {
		t.Fatalf("monotonically rising closes should classify STRONG UPTREND, got %s", got.Trend)
	}
	if got.Momentum1hPct <= 0 {
		t.Fatalf("momentum should be positive on a rising series, got %v", got.Momentum1hPct)
	}
	if got.DayHigh <= got.DayLow {
		t.Fatalf("day high %v should exceed day low %v", got.DayHigh, got.DayLow)
	}
	if got.PositionInRange < 90 {
		t.Fatalf("last close of a rising series should sit near the range top, got %v", got.PositionInRange)
	}
}

func TestAnalyzeStructureDowntrend(t *testing.T) {
	got := AnalyzeStructure(risingCandles(288, 68000, -10))
	if got.Trend != "STRONG DOWNTREND" {
		t.Fatalf("monotonically falling closes should classify STRONG DOWNTREND, got %s", got.Trend)
	}
}

func TestAnalyzeStructureFlatSeriesIsChoppy(t *testing.T) {
	got := AnalyzeStructure(risingCandles(48, 68000, 0))
	if got.Trend != "RANGING/CHOPPY" {
		t.Fatalf("a flat series is neither trend, got %s", got.Trend)
	}
	if got.VolumeRatio != 1 {
		t.Fatalf("uniform volume should give ratio 1, got %v", got.VolumeRatio)
	}
}
