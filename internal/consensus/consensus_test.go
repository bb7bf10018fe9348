package consensus

import (
	"testing"

	"btc-predictor/internal/model"
)

func TestEvaluateVetoDominates(t *testing.T) {
	f := model.Forecast{Confidence: 0.95}
	r := model.Review{Agreement: model.Agree, Confidence: 0.95, Veto: true}

	if got := Evaluate(f, r, DefaultStrongThreshold); got != model.ConsensusVeto {
		t.Fatalf("veto must dominate every other signal, got %s", got)
	}
}

func TestEvaluateDisagreement(t *testing.T) {
	f := model.Forecast{Confidence: 0.9}
	r := model.Review{Agreement: model.Disagree, Confidence: 0.9}

	if got := Evaluate(f, r, DefaultStrongThreshold); got != model.ConsensusDisagreement {
		t.Fatalf("disagreement without veto should label DISAGREEMENT, got %s", got)
	}
}

func TestEvaluateStrong(t *testing.T) {
	f := model.Forecast{Confidence: 0.85}
	r := model.Review{Agreement: model.Agree, Confidence: 0.8}

	if got := Evaluate(f, r, DefaultStrongThreshold); got != model.ConsensusStrong {
		t.Fatalf("agreement with both confidences above threshold should be STRONG, got %s", got)
	}
}

func TestEvaluateWeakWhenOneConfidenceLow(t *testing.T) {
	f := model.Forecast{Confidence: 0.9}
	r := model.Review{Agreement: model.Agree, Confidence: 0.5}

	if got := Evaluate(f, r, DefaultStrongThreshold); got != model.ConsensusWeak {
		t.Fatalf("agreement with one low confidence should be WEAK, got %s", got)
	}
}

func TestEvaluateThresholdBoundary(t *testing.T) {
	f := model.Forecast{Confidence: 0.70}
	r := model.Review{Agreement: model.Agree, Confidence: 0.70}

	if got := Evaluate(f, r, DefaultStrongThreshold); got != model.ConsensusStrong {
		t.Fatalf("confidences exactly at the threshold count as STRONG, got %s", got)
	}

	r.Confidence = 0.6999
	if got := Evaluate(f, r, DefaultStrongThreshold); got != model.ConsensusWeak {
		t.Fatalf("confidence just below the threshold should be WEAK, got %s", got)
	}
}

func TestEvaluateAlwaysLabels(t *testing.T) {
	agreements := []model.Agreement{model.Agree, model.Disagree}
	confidences := []float64{0, 0.3, 0.7, 1}
	vetoes := []bool{true, false}

	for _, agreement := range agreements {
		for _, fc := range confidences {
			for _, rc := range confidences {
				for _, veto := range vetoes {
					f := model.Forecast{Confidence: fc}
					r := model.Review{Agreement: agreement, Confidence: rc, Veto: veto}
					label := Evaluate(f, r, DefaultStrongThreshold)
					switch label {
					case model.ConsensusStrong, model.ConsensusWeak, model.ConsensusDisagreement, model.ConsensusVeto:
					default:
						t.Fatalf("unlabelled combination: agreement=%s fc=%v rc=%v veto=%v", agreement, fc, rc, veto)
					}
				}
			}
		}
	}
}
