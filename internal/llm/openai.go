package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/localdocs/localdocs-cli/internal/logger"
)

type openAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	maxRetries  int
	baseDelay   time.Duration
	limiter     *rate.Limiter
}

func newOpenAI(cfg Config) *openAIClient {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &openAIClient{
		client:      openai.NewClientWithConfig(cc),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		baseDelay:   cfg.RetryBaseDelay,
		limiter:     limiter,
	}
}

func (c *openAIClient) ModelName() string {
	return c.model
}

func (c *openAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if user == "" {
		return "", fmt.Errorf("%w: cannot complete an empty prompt", ErrCompletionService)
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		r, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response contains no choices", ErrCompletionService)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) withRetry(ctx context.Context, call func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay(attempt)):
			}
		}
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx); werr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %w", ErrCompletionService, werr)
			}
		}

		err = call(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryableError(err) {
			return fmt.Errorf("%w: %w", ErrCompletionService, err)
		}
		logger.Debug("completion request failed (attempt %d/%d): %v", attempt+1, c.maxRetries+1, err)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrCompletionService, c.maxRetries+1, err)
}

func (c *openAIClient) retryDelay(attempt int) time.Duration {
	d := c.baseDelay << uint(attempt-1)
	if max := 8 * time.Second; d > max {
		d = max
	}
	return d
}

// retryableError reports whether err is worth another attempt: rate limits,
// server-side failures and network timeouts. Auth and validation errors are
// permanent.
func retryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
