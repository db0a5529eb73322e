// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the service answers without any content
var ErrEmptyCompletion = errors.New("llm: completion returned no content")

// TextGenerator produces a reply for a system instruction and a user prompt
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Config configures the OpenAI client
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// OpenAIClient is a TextGenerator backed by go-openai
type OpenAIClient struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
	logger    zerolog.Logger
}

// NewOpenAIClient creates a client; BaseURL may point at any compatible server
func NewOpenAIClient(cfg Config, logger zerolog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger.Info().Str("model", cfg.Model).Str("baseURL", clientConfig.BaseURL).Msg("Initializing OpenAI client")

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Model returns the configured model name
func (c *OpenAIClient) Model() string {
	return c.model
}

// Generate sends one system + user exchange and returns the first choice
func (c *OpenAIClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if c.maxTokens > 0 {
		req.MaxCompletionTokens = c.maxTokens
	}

	c.logger.Debug().Str("model", c.model).Int("promptLength", len(prompt)).Msg("Requesting chat completion")

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Msg("OpenAI API call failed")
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		c.logger.Warn().Msg("OpenAI returned no choices or empty content")
		return "", ErrEmptyCompletion
	}

	c.logger.Debug().Str("finishReason", string(resp.Choices[0].FinishReason)).Msg("Received chat completion")
	return resp.Choices[0].Message.Content, nil
}
