package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"btc-predictor/internal/model"
)

// Assessment is the reviewer's structured verdict on a forecast.
type Assessment struct {
	Agreement  model.Agreement
	Confidence float64
	Concerns   []string
	Veto       bool
}

// Reviewer independently assesses a forecast and its rationale.
type Reviewer interface {
	Review(ctx context.Context, f model.Forecast, b model.Briefing) (Assessment, error)
}

// ChatReviewer implements Reviewer over a second, independent chat model.
type ChatReviewer struct {
	client *Client
	logger zerolog.Logger
}

// NewChatReviewer constructs the production reviewer.
func NewChatReviewer(client *Client, logger zerolog.Logger) *ChatReviewer {
	return &ChatReviewer{
		client: client,
		logger: logger.With().Str("component", "reviewer").Logger(),
	}
}

type assessmentReply struct {
	Agrees         bool     `json:"agrees"`
	Confidence     float64  `json:"confidence_correct"`
	Reasoning      string   `json:"reasoning"`
	Concerns       []string `json:"concerns"`
	RuleViolations []string `json:"meta_rule_violations"`
	Veto           bool     `json:"veto"`
}

// Review prompts the reviewer model and validates the reply. Transport
// failures map to ErrReviewerUnavailable, structural problems to
// ErrMalformedReview.
func (r *ChatReviewer) Review(ctx context.Context, f model.Forecast, b model.Briefing) (Assessment, error) {
	raw, err := r.client.Complete(ctx, reviewPrompt(f, b))
	if err != nil {
		return Assessment{}, fmt.Errorf("%w: %v", model.ErrReviewerUnavailable, err)
	}

	var reply assessmentReply
	if err := decodeJSONReply(raw, &reply); err != nil {
		r.logger.Error().Str("raw", raw).Err(err).Msg("review reply is not valid JSON")
		return Assessment{}, fmt.Errorf("%w: %v", model.ErrMalformedReview, err)
	}

	if reply.Confidence < 0 || reply.Confidence > 100 {
		r.logger.Error().Str("raw", raw).Msg("review reply failed validation")
		return Assessment{}, fmt.Errorf("confidence %v: %w", reply.Confidence, model.ErrMalformedReview)
	}

	agreement := model.Agree
	if !reply.Agrees {
		agreement = model.Disagree
	}

	concerns := reply.Concerns
	for _, v := range reply.RuleViolations {
		concerns = append(concerns, "meta-rule violation: "+v)
	}

	return Assessment{
		Agreement:  agreement,
		Confidence: reply.Confidence / 100,
		Concerns:   concerns,
		Veto:       reply.Veto,
	}, nil
}
