package learning

import (
	"testing"
	"time"

	"btc-predictor/internal/model"
)

func learningWith(id, condition string) model.Learning {
	return model.Learning{
		ID:        id,
		Timeframe: "5m",
		Kind:      model.LearningCaution,
		Condition: condition,
		Guidance:  "avoid this setup",
	}
}

func TestAnalyzeRequiresMinSupport(t *testing.T) {
	a := NewAnalyzer()
	learnings := []model.Learning{
		learningWith("l1", "cond-a"),
		learningWith("l2", "cond-b"),
	}

	if rules := a.Analyze(learnings, time.Now()); len(rules) != 0 {
		t.Fatalf("singleton groups must not produce rules, got %d", len(rules))
	}
}

func TestAnalyzeGroupsByCondition(t *testing.T) {
	a := NewAnalyzer()
	learnings := []model.Learning{
		learningWith("l1", "cond-a"),
		learningWith("l2", "cond-a"),
		learningWith("l3", "cond-b"),
		learningWith("l4", "cond-b"),
		learningWith("l5", "cond-b"),
		learningWith("l6", "cond-c"),
	}

	rules := a.Analyze(learnings, time.Now())
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	// Condition keys are sorted, so cond-a comes first.
	if len(rules[0].SupportIDs) != 2 {
		t.Fatalf("first rule support = %d, want 2", len(rules[0].SupportIDs))
	}
	if len(rules[1].SupportIDs) != 3 {
		t.Fatalf("second rule support = %d, want 3", len(rules[1].SupportIDs))
	}
}

func TestAnalyzeSupportKeyStableAcrossRuns(t *testing.T) {
	a := NewAnalyzer()
	learnings := []model.Learning{
		learningWith("l2", "cond-a"),
		learningWith("l1", "cond-a"),
	}

	first := a.Analyze(learnings, time.Now())
	second := a.Analyze([]model.Learning{learnings[1], learnings[0]}, time.Now())

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one rule per run, got %d and %d", len(first), len(second))
	}
	if first[0].SupportKey() != second[0].SupportKey() {
		t.Fatalf("support keys must be input-order independent: %q vs %q",
			first[0].SupportKey(), second[0].SupportKey())
	}
}

func TestAnalyzeDoesNotMutateInput(t *testing.T) {
	a := NewAnalyzer()
	learnings := []model.Learning{
		learningWith("l1", "cond-a"),
		learningWith("l2", "cond-a"),
	}
	a.Analyze(learnings, time.Now())

	if learnings[0].ID != "l1" || learnings[1].ID != "l2" {
		t.Fatal("analyze must not mutate its input")
	}
}
