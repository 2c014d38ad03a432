// Package llm wraps the chat-completion backend used to synthesize answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCompletionService is wrapped by every failure of the completion backend,
// including retry exhaustion. Context cancellation passes through unwrapped.
var ErrCompletionService = errors.New("completion service unavailable")

// Client produces a chat completion from a system prompt and a user prompt.
type Client interface {
	ModelName() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config contains the resolved completion configuration.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string        // empty = api.openai.com
	Timeout           time.Duration // per-request HTTP timeout
	Temperature       float32
	MaxTokens         int
	MaxRetries        int           // retries after the first attempt; 0 = default, negative = none
	RetryBaseDelay    time.Duration // doubled per retry
	RequestsPerSecond float64       // 0 disables client-side pacing
}

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMaxTokens      = 1000
	DefaultMaxRetries     = 4
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	} else if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return c
}

// New returns a Client for cfg.
func New(cfg Config) (Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("completion model is not configured")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not configured (set LOCALDOCS_OPENAI_API_KEY)")
	}
	return newOpenAI(cfg.withDefaults()), nil
}
