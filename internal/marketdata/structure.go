package marketdata

import (
	"math"

	"btc-predictor/internal/model"
)

// AnalyzeStructure derives trend, momentum, and volatility features from a
// day of interval candles. Window sizes assume 5-minute candles (12 per
// hour); shorter histories degrade gracefully to whole-series averages.
func AnalyzeStructure(candles []model.Candle) model.MarketStructure {
	if len(candles) < 12 {
		return model.MarketStructure{Trend: "UNKNOWN"}
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close.InexactFloat64()
		highs[i] = c.High.InexactFloat64()
		lows[i] = c.Low.InexactFloat64()
		volumes[i] = c.Volume.InexactFloat64()
	}

	current := closes[len(closes)-1]
	ma12 := mean(closes[len(closes)-12:])
	ma48 := mean(tail(closes, 48))
	maAll := mean(closes)

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			returns = append(returns, (closes[i]-closes[i-1])/closes[i-1]*100)
		}
	}

	momentum1h := momentum(closes, 12)
	momentum4h := momentum(closes, 48)

	dayHigh := maxOf(highs)
	dayLow := minOf(lows)

	avgVolume := mean(volumes)
	recentVolume := mean(tail(volumes, 6))
	volumeRatio := 1.0
	if avgVolume > 0 {
		volumeRatio = recentVolume / avgVolume
	}

	position := 50.0
	if dayHigh > dayLow {
		position = (current - dayLow) / (dayHigh - dayLow) * 100
	}

	return model.MarketStructure{
		Trend:           classifyTrend(current, ma12, ma48, maAll),
		MA1h:            ma12,
		MA4h:            ma48,
		MA24h:           maAll,
		VolatilityPct:   stddev(returns),
		Momentum1hPct:   momentum1h,
		Momentum4hPct:   momentum4h,
		DayHigh:         dayHigh,
		DayLow:          dayLow,
		VolumeRatio:     volumeRatio,
		PositionInRange: position,
	}
}

func classifyTrend(current, ma12, ma48, maAll float64) string {
	switch {
	case current > ma12 && ma12 > ma48 && ma48 > maAll:
		return "STRONG UPTREND"
	case current > ma12 && ma12 > ma48:
		return "UPTREND"
	case current < ma12 && ma12 < ma48 && ma48 < maAll:
		return "STRONG DOWNTREND"
	case current < ma12 && ma12 < ma48:
		return "DOWNTREND"
	default:
		return "RANGING/CHOPPY"
	}
}

func momentum(closes []float64, lookback int) float64 {
	if len(closes) < lookback || closes[len(closes)-lookback] == 0 {
		return 0
	}
	base := closes[len(closes)-lookback]
	return (closes[len(closes)-1] - base) / base * 100
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := mean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - avg) * (v - avg)
	}
	return math.Sqrt(sum / float64(len(values)))
}

func maxOf(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v > best {
			best = v
		}
	}
	return best
}

func minOf(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if v < best {
			best = v
		}
	}
	return best
}
