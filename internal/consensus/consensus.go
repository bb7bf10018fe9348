package consensus

import (
	"btc-predictor/internal/model"
)

// DefaultStrongThreshold is the confidence both models must reach before an
// agreement counts as a strong signal.
const DefaultStrongThreshold = 0.70

// Evaluate combines a forecast and its review into a single signal label.
// The function is total and deterministic; precedence is fixed: a veto
// dominates everything, disagreement dominates the strong/weak split.
func Evaluate(f model.Forecast, r model.Review, strongThreshold float64) model.ConsensusLabel {
	if strongThreshold <= 0 {
		strongThreshold = DefaultStrongThreshold
	}

	switch {
	case r.Veto:
		return model.ConsensusVeto
	case r.Agreement == model.Disagree:
		return model.ConsensusDisagreement
	case f.Confidence >= strongThreshold && r.Confidence >= strongThreshold:
		return model.ConsensusStrong
	default:
		return model.ConsensusWeak
	}
}
