package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// Config holds chat completion client settings
type Config struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RPM         int           `mapstructure:"rpm"`
	Burst       int           `mapstructure:"burst"`
}

// Validate checks required fields
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm: api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm: model is required")
	}
	return nil
}

// ChatClient is the narrow completion interface the pipeline depends on
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Client wraps the OpenAI-compatible chat API with rate limiting and
// retry on transient failures.
type Client struct {
	api     *openai.Client
	config  *Config
	limiter *rate.Limiter
}

const (
	maxRetries   = 3
	retryBackoff = 2 * time.Second
)

// NewClient creates a chat client from config
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	rpm := config.RPM
	if rpm <= 0 {
		rpm = 60
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientConfig),
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
	}, nil
}

// Complete sends one system+user prompt pair and returns the assistant text.
// Rate-limited; retries with exponential backoff on rate-limit and 5xx errors.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			if isRetryable(err) {
				continue
			}
			return "", err
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("llm: empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("llm: completion failed after %d retries: %w", maxRetries, lastErr)
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return false
}

// StripFences removes a surrounding markdown code fence from model output,
// which some models add despite instructions to return raw JSON.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// drop a language tag such as "json" on the fence line
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
