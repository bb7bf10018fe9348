package llm

import (
	"fmt"
	"strings"

	"btc-predictor/internal/model"
)

const promptCandleCount = 12

func forecastPrompt(b model.Briefing) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a BTC price prediction system. Predict the direction and target price of BTC/USDT over the next %s.\n\n", b.Timeframe)
	fmt.Fprintf(&sb, "## Current State\n- Current Price: $%s\n\n", b.CurrentPrice.StringFixed(2))

	writeMarketStructure(&sb, b.Market)

	sb.WriteString("\n## Recent Price Action\n")
	writeCandles(&sb, b.Candles)

	fmt.Fprintf(&sb, "\n## Your Track Record\n- Total Predictions: %d\n- Accuracy: %.1f%%\n- Avg Target Error: %.2f%%\n- Avg Calibration Error: %.2f\n- Active Meta-Rules: %d\n",
		b.Track.Total, b.Track.AccuracyPct, b.Track.AvgPriceError*100, b.Track.AvgCalibration, b.Track.ActiveMetaRules)

	writeCorpus(&sb, b)

	sb.WriteString(`
## Your Task
Predict the direction (UP, DOWN, or FLAT), a specific target price, and your confidence (0-100). Apply any relevant meta-rules above; they encode past mistakes.

Respond in this exact JSON format:
` + "```json" + `
{
    "direction": "UP" | "DOWN" | "FLAT",
    "target": <number>,
    "confidence": <0-100>,
    "reasoning": "<which factors and rules influenced the call>"
}
` + "```")

	return sb.String()
}

func reviewPrompt(f model.Forecast, b model.Briefing) string {
	var sb strings.Builder

	sb.WriteString("You are an independent verifier for a BTC prediction system. Review the forecast below, look for reasoning errors, and check it against the active meta-rules.\n")

	fmt.Fprintf(&sb, "\n## The Forecast\n- Direction: %s\n- Target Price: $%s\n- Confidence: %.0f%%\n- Entry Price: $%s\n- Reasoning: %s\n",
		f.Direction, f.TargetPrice.StringFixed(2), f.Confidence*100, f.EntryPrice.StringFixed(2), f.Rationale)

	sb.WriteString("\n## Current Market Data\n")
	writeMarketStructure(&sb, b.Market)

	writeCorpus(&sb, b)

	sb.WriteString(`
## Your Task
Give your verdict. Set "veto" only when the forecast is unsafe to act on at all.

Respond in this exact JSON format:
` + "```json" + `
{
    "agrees": true | false,
    "confidence_correct": <0-100>,
    "reasoning": "<your analysis>",
    "concerns": ["specific concerns"],
    "meta_rule_violations": ["meta-rules the forecast violates"],
    "veto": true | false
}
` + "```")

	return sb.String()
}

func writeMarketStructure(sb *strings.Builder, m model.MarketStructure) {
	fmt.Fprintf(sb, "- Trend: %s\n", m.Trend)
	fmt.Fprintf(sb, "- Moving Averages: 1h=$%.2f | 4h=$%.2f | 24h=$%.2f\n", m.MA1h, m.MA4h, m.MA24h)
	fmt.Fprintf(sb, "- Volatility (interval returns): %.3f%%\n", m.VolatilityPct)
	fmt.Fprintf(sb, "- Momentum: 1h=%+.2f%% | 4h=%+.2f%%\n", m.Momentum1hPct, m.Momentum4hPct)
	fmt.Fprintf(sb, "- Day Range: $%.2f - $%.2f (position %.1f%%)\n", m.DayLow, m.DayHigh, m.PositionInRange)
	fmt.Fprintf(sb, "- Volume Ratio (recent/avg): %.2fx\n", m.VolumeRatio)
}

func writeCandles(sb *strings.Builder, candles []model.Candle) {
	start := len(candles) - promptCandleCount
	if start < 0 {
		start = 0
	}
	for _, c := range candles[start:] {
		fmt.Fprintf(sb, "  %s | O:%s H:%s L:%s C:%s | %+.3f%%\n",
			c.OpenTime.UTC().Format("15:04"),
			c.Open.StringFixed(2), c.High.StringFixed(2), c.Low.StringFixed(2), c.Close.StringFixed(2),
			c.ChangePct)
	}
}

func writeCorpus(sb *strings.Builder, b model.Briefing) {
	if len(b.MetaRules) > 0 {
		sb.WriteString("\n## Meta-Rules (from pattern analysis)\n")
		for i, rule := range b.MetaRules {
			fmt.Fprintf(sb, "%d. %s\n", i+1, rule.Pattern)
		}
	}

	if len(b.Learnings) > 0 {
		sb.WriteString("\n## Learnings from Past Predictions\n")
		for _, l := range b.Learnings {
			fmt.Fprintf(sb, "- [%s] %s\n", l.Kind, l.Guidance)
		}
	}

	if len(b.MetaRules) == 0 && len(b.Learnings) == 0 {
		sb.WriteString("\nNo historical learnings yet. This is an early prediction.\n")
	}
}
