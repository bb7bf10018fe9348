package model

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the predicted price direction over a timeframe.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionFlat Direction = "FLAT"
)

// Valid reports whether d is one of the three known directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionFlat:
		return true
	}
	return false
}

// Agreement is the reviewer's verdict on a forecast.
type Agreement string

const (
	Agree    Agreement = "AGREE"
	Disagree Agreement = "DISAGREE"
)

// Valid reports whether a is a known agreement value.
func (a Agreement) Valid() bool {
	return a == Agree || a == Disagree
}

// State tracks a forecast through its lifecycle. Transitions are strictly
// forward; LEARNED, CLOSED, and FAILED are terminal.
type State string

const (
	StateCreated         State = "CREATED"
	StateReviewed        State = "REVIEWED"
	StateAwaitingOutcome State = "AWAITING_OUTCOME"
	StateResolved        State = "RESOLVED"
	StateScored          State = "SCORED"
	StateLearned         State = "LEARNED"
	StateClosed          State = "CLOSED"
	StateFailed          State = "FAILED"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateLearned, StateClosed, StateFailed:
		return true
	}
	return false
}

// ConsensusLabel is the combined signal derived from a forecast and its
// review.
type ConsensusLabel string

const (
	ConsensusStrong       ConsensusLabel = "STRONG"
	ConsensusWeak         ConsensusLabel = "WEAK"
	ConsensusDisagreement ConsensusLabel = "DISAGREEMENT"
	ConsensusVeto         ConsensusLabel = "VETO"
)

// ContextSnapshot records which learnings and meta-rules were injected into
// the producer's briefing for a forecast.
type ContextSnapshot struct {
	LearningIDs []string `json:"learning_ids"`
	MetaRuleIDs []string `json:"meta_rule_ids"`
}

// Forecast is a single directional prediction. All fields except State and
// Failure are immutable once the record is persisted.
type Forecast struct {
	ID          string
	Timeframe   string
	CreatedAt   time.Time
	Deadline    time.Time
	EntryPrice  decimal.Decimal
	Direction   Direction
	TargetPrice decimal.Decimal
	Confidence  float64
	Rationale   string
	Context     ContextSnapshot
	State       State
	Failure     string
}

// Review is the independent assessment of one forecast, 1:1 by forecast id.
type Review struct {
	ForecastID string
	Agreement  Agreement
	Confidence float64
	Concerns   []string
	Veto       bool
	Consensus  ConsensusLabel
	CreatedAt  time.Time
}

// Outcome records the realized price at a forecast's deadline.
type Outcome struct {
	ForecastID       string
	ResolvedAt       time.Time
	RealizedPrice    decimal.Decimal
	CorrectDirection bool
}

// CalibrationScore measures a resolved forecast against its outcome.
type CalibrationScore struct {
	ForecastID       string
	DirectionCorrect bool
	PriceError       decimal.Decimal
	CalibrationError float64
}

// LearningKind distinguishes cautionary learnings from reinforcements.
type LearningKind string

const (
	LearningCaution       LearningKind = "caution"
	LearningReinforcement LearningKind = "reinforcement"
)

// Learning is a reusable note extracted from an extreme forecast's result.
type Learning struct {
	ID               string
	Timeframe        string
	SourceForecastID string
	Kind             LearningKind
	Condition        string
	Guidance         string
	CreatedAt        time.Time
}

// MetaRule generalizes a pattern shared by two or more learnings.
type MetaRule struct {
	ID         string
	Timeframe  string
	SupportIDs []string
	Pattern    string
	CreatedAt  time.Time
}

// SupportKey is the canonical identity of a meta-rule: the sorted id set of
// its supporting learnings. The store deduplicates on it, which makes
// re-running the analyzer over an unchanged learning set a no-op.
func (m MetaRule) SupportKey() string {
	ids := append([]string(nil), m.SupportIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
