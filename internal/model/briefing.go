package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one interval of OHLCV market history.
type Candle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	ChangePct float64
}

// MarketStructure summarises recent price action for the producer prompt.
type MarketStructure struct {
	Trend           string
	MA1h            float64
	MA4h            float64
	MA24h           float64
	VolatilityPct   float64
	Momentum1hPct   float64
	Momentum4hPct   float64
	DayHigh         float64
	DayLow          float64
	VolumeRatio     float64
	PositionInRange float64
}

// TrackRecord is the engine's own performance summary, fed back into the
// producer prompt so the model sees its history.
type TrackRecord struct {
	Total           int64
	Resolved        int64
	Correct         int64
	AccuracyPct     float64
	AvgPriceError   float64
	AvgCalibration  float64
	ActiveMetaRules int64
}

// Briefing is the full context assembled before each new forecast: price
// history, market structure, track record, and the active learning corpus.
type Briefing struct {
	Timeframe    string
	CurrentPrice decimal.Decimal
	Candles      []Candle
	Market       MarketStructure
	Track        TrackRecord
	Learnings    []Learning
	MetaRules    []MetaRule
}

// Snapshot captures the corpus ids used in a briefing, persisted with the
// forecast so each prediction's inputs stay auditable.
func (b Briefing) Snapshot() ContextSnapshot {
	snap := ContextSnapshot{
		LearningIDs: make([]string, 0, len(b.Learnings)),
		MetaRuleIDs: make([]string, 0, len(b.MetaRules)),
	}
	for _, l := range b.Learnings {
		snap.LearningIDs = append(snap.LearningIDs, l.ID)
	}
	for _, m := range b.MetaRules {
		snap.MetaRuleIDs = append(snap.MetaRuleIDs, m.ID)
	}
	return snap
}
