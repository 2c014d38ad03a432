package embeddings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/localdocs/localdocs-cli/internal/logger"
)

type openAIProvider struct {
	client        *openai.Client
	model         string
	batchLimit    int
	maxConcurrent int
	maxRetries    int
	baseDelay     time.Duration
	limiter       *rate.Limiter

	mu  sync.Mutex
	dim int // learned from the first response
}

// newOpenAI constructs a provider for the OpenAI embeddings endpoint or any
// API-compatible server reachable through cfg.BaseURL.
func newOpenAI(cfg Config) *openAIProvider {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &openAIProvider{
		client:        openai.NewClientWithConfig(cc),
		model:         cfg.Model,
		batchLimit:    cfg.BatchLimit,
		maxConcurrent: cfg.MaxConcurrent,
		maxRetries:    cfg.MaxRetries,
		baseDelay:     cfg.RetryBaseDelay,
		limiter:       limiter,
	}
}

func (p *openAIProvider) ModelName() string {
	return p.model
}

// Dimensions reports the vector width for known models, or whatever the
// first successful call returned.
func (p *openAIProvider) Dimensions() int {
	switch p.model {
	case string(openai.SmallEmbedding3):
		return 1536
	case string(openai.LargeEmbedding3):
		return 3072
	case string(openai.AdaEmbeddingV2):
		return 1536
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dim
}

func (p *openAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", ErrEmbeddingService)
	}
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Batches run concurrently, each writing into its own slice window, so
	// result positions depend only on input order, never completion order.
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	limit := p.maxConcurrent
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for offset := 0; offset < len(texts); offset += p.batchLimit {
		end := min(offset+p.batchLimit, len(texts))
		offset := offset
		g.Go(func() error {
			return p.embedSlice(gctx, texts[offset:end], out[offset:end])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := 0
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: no embedding returned for input %d", ErrEmbeddingService, i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedding dim changed mid-run: got %d want %d", ErrEmbeddingService, len(v), dim)
		}
	}
	p.recordDim(dim)
	return out, nil
}

// embedSlice issues one API request for texts and places each returned
// vector by its explicit index field, never by arrival order.
func (p *openAIProvider) embedSlice(ctx context.Context, texts []string, out [][]float32) error {
	var resp openai.EmbeddingResponse
	err := p.withRetry(ctx, func(ctx context.Context) error {
		r, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(p.model),
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}

	if len(resp.Data) != len(texts) {
		return fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingService, len(resp.Data), len(texts))
	}
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingService, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return nil
}

func (p *openAIProvider) withRetry(ctx context.Context, call func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay(attempt)):
			}
		}
		if p.limiter != nil {
			if werr := p.limiter.Wait(ctx); werr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: %w", ErrEmbeddingService, werr)
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
			return fmt.Errorf("%w: %w", ErrEmbeddingService, err)
		}
		logger.Debug("embedding request failed (attempt %d/%d): %v", attempt+1, p.maxRetries+1, err)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrEmbeddingService, p.maxRetries+1, err)
}

func (p *openAIProvider) retryDelay(attempt int) time.Duration {
	d := p.baseDelay << uint(attempt-1)
	if max := 8 * time.Second; d > max {
		d = max
	}
	return d
}

func (p *openAIProvider) recordDim(dim int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dim == 0 {
		p.dim = dim
	}
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
