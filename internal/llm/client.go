// Package llm sends prompts to a hosted chat model.
//
// Both providers speak the OpenAI chat completions protocol: OpenAI itself and
// Gemini through its OpenAI compatible endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"pharmabot/internal/logger"
)

// Supported LLM_PROVIDER values.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

const (
	// GeminiBaseURL is Gemini's OpenAI compatible endpoint.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// Completer turns a prompt into the model's reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures a Client.
type Config struct {
	Provider    string  // gemini, openai
	APIKey      string  // GOOGLE_API_KEY or OPENAI_API_KEY
	Model       string  // empty selects the provider default
	BaseURL     string  // empty selects the provider endpoint
	Temperature float32 // sampling temperature
	MaxTokens   int     // reply token limit, 0 for the model default
	MaxRetries  int     // attempts per prompt, at least 1
	RetryDelay  time.Duration
}

// Client implements Completer with go-openai.
type Client struct {
	api    *openai.Client
	config Config
	log    zerolog.Logger
}

// NewClient creates a client for cfg.Provider.
func NewClient(cfg Config) (*Client, error) {
	const op = "NewClient"

	cfg, err := normalize(cfg)
	if err != nil {
		return nil, WrapCompletionError(op, err, cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, WrapCompletionError(op, ErrMissingAPIKey, cfg.Provider)
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return NewClientWithDeps(openai.NewClientWithConfig(apiConfig), cfg), nil
}

// NewClientWithDeps creates a client with an explicit API client.
func NewClientWithDeps(api *openai.Client, cfg Config) *Client {
	if normalized, err := normalize(cfg); err == nil {
		cfg = normalized
	}
	return &Client{
		api:    api,
		config: cfg,
		log:    logger.WithComponent("llm"),
	}
}

// normalize fills provider defaults.
func normalize(cfg Config) (Config, error) {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch cfg.Provider {
	case "", ProviderGemini:
		cfg.Provider = ProviderGemini
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = GeminiBaseURL
		}
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
	default:
		return cfg, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return cfg, nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.config.Model
}

// Provider returns the configured provider.
func (c *Client) Provider() string {
	return c.config.Provider
}

// Complete sends prompt as a single user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	const op = "Complete"

	c.log.Debug().
		Int("prompt_length", len(prompt)).
		Str("provider", c.config.Provider).
		Str("model", c.config.Model).
		Float32("temperature", c.config.Temperature).
		Msg("Sending completion request")

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", WrapCompletionError(op, ctx.Err(), "canceled between attempts")
			case <-time.After(c.config.RetryDelay):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: c.config.Temperature,
			MaxTokens:   c.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", WrapCompletionError(op, ctx.Err(), "request canceled")
			}
			c.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.config.MaxRetries).
				Msg("Completion request failed")
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = ErrNoChoices
			c.log.Warn().
				Int("attempt", attempt).
				Msg("Completion returned no choices")
			continue
		}

		content := resp.Choices[0].Message.Content
		c.log.Debug().
			Int("response_length", len(content)).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Int("attempt", attempt).
			Msg("Received completion")

		return content, nil
	}

	details := fmt.Sprintf("all %d attempts failed", c.config.MaxRetries)
	if errors.Is(lastErr, ErrNoChoices) {
		return "", WrapCompletionError(op, ErrNoChoices, details)
	}
	return "", WrapCompletionError(op, fmt.Errorf("%w: %w", ErrCompletionFailed, lastErr), details)
}
