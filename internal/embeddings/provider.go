// Package embeddings turns text into fixed-length vectors through an
// OpenAI-compatible embeddings API.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmbeddingService is wrapped by every failure of the embedding backend,
// including retry exhaustion. Context cancellation passes through unwrapped.
var ErrEmbeddingService = errors.New("embedding service unavailable")

// Provider embeds text into vectors of uniform dimensionality.
//
// EmbedBatch must return vectors in input order regardless of how the
// backend orders its response, and implementations must be deterministic
// for the same input text and model.
type Provider interface {
	ModelName() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config contains the resolved embeddings configuration.
type Config struct {
	APIKey            string
	Model             string
	BaseURL           string        // empty = api.openai.com
	Timeout           time.Duration // per-request HTTP timeout
	BatchLimit        int           // max inputs per API request
	MaxConcurrent     int           // batch requests in flight at once
	MaxRetries        int           // retries after the first attempt; 0 = default, negative = none
	RetryBaseDelay    time.Duration // doubled per retry
	RequestsPerSecond float64       // 0 disables client-side pacing
}

const (
	DefaultTimeout           = 60 * time.Second
	DefaultBatchLimit        = 128
	DefaultMaxConcurrent     = 4
	DefaultMaxRetries        = 4
	DefaultRetryBaseDelay    = 500 * time.Millisecond
	DefaultRequestsPerSecond = 5
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = DefaultBatchLimit
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
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

// New returns a Provider for cfg.
func New(cfg Config) (Provider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is not configured")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is not configured (set LOCALDOCS_OPENAI_API_KEY)")
	}
	return newOpenAI(cfg.withDefaults()), nil
}
