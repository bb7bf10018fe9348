package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-predictor/internal/model"
)

// Proposal is the producer's structured forecast before the engine turns it
// into a persisted Forecast.
type Proposal struct {
	Direction  model.Direction
	Target     decimal.Decimal
	Confidence float64
	Rationale  string
}

// Producer obtains a directional forecast for a briefing.
type Producer interface {
	Produce(ctx context.Context, b model.Briefing) (Proposal, error)
}

// ChatProducer implements Producer over a chat-completion model.
type ChatProducer struct {
	client *Client
	logger zerolog.Logger
}

// NewChatProducer constructs the production forecast producer.
func NewChatProducer(client *Client, logger zerolog.Logger) *ChatProducer {
	return &ChatProducer{
		client: client,
		logger: logger.With().Str("component", "producer").Logger(),
	}
}

type proposalReply struct {
	Direction  string  `json:"direction"`
	Target     float64 `json:"target"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Produce prompts the model with the briefing and validates the reply.
// Transport failures map to ErrProducerUnavailable, structural problems to
// ErrMalformedForecast with the raw reply logged for diagnosis.
func (p *ChatProducer) Produce(ctx context.Context, b model.Briefing) (Proposal, error) {
	raw, err := p.client.Complete(ctx, forecastPrompt(b))
	if err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", model.ErrProducerUnavailable, err)
	}

	var reply proposalReply
	if err := decodeJSONReply(raw, &reply); err != nil {
		p.logger.Error().Str("raw", raw).Err(err).Msg("forecast reply is not valid JSON")
		return Proposal{}, fmt.Errorf("%w: %v", model.ErrMalformedForecast, err)
	}

	proposal, err := reply.validate()
	if err != nil {
		p.logger.Error().Str("raw", raw).Err(err).Msg("forecast reply failed validation")
		return Proposal{}, err
	}
	return proposal, nil
}

func (r proposalReply) validate() (Proposal, error) {
	direction := model.Direction(r.Direction)
	if !direction.Valid() {
		return Proposal{}, fmt.Errorf("direction %q: %w", r.Direction, model.ErrMalformedForecast)
	}
	if r.Target <= 0 {
		return Proposal{}, fmt.Errorf("target %v: %w", r.Target, model.ErrMalformedForecast)
	}
	if r.Confidence < 0 || r.Confidence > 100 {
		return Proposal{}, fmt.Errorf("confidence %v: %w", r.Confidence, model.ErrMalformedForecast)
	}

	return Proposal{
		Direction:  direction,
		Target:     decimal.NewFromFloat(r.Target),
		Confidence: r.Confidence / 100,
		Rationale:  r.Reasoning,
	}, nil
}
