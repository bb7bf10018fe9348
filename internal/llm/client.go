package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Options parameterise one chat-completion endpoint. Producer and reviewer
// each get their own Options so they stay independent models.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    zerolog.Logger
}

// NewClient constructs a chat client for one model endpoint.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}

	return &Client{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		maxTokens: maxTokens,
		logger:    logger.With().Str("component", "llm_client").Str("model", opts.Model).Logger(),
	}
}

// Complete sends a single-user-message prompt and returns the raw completion
// text. Transport and API failures come back unwrapped; callers attach their
// role-specific sentinel.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("chat completion failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
