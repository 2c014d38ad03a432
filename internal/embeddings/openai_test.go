package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type embeddingObject struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func decodeInput(t *testing.T, r *http.Request) []string {
	t.Helper()
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("cannot decode request: %v", err)
	}
	return req.Input
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, data []embeddingObject) {
	t.Helper()
	resp := map[string]any{
		"object": "list",
		"data":   data,
		"model":  "test-embed",
		"usage":  map[string]int{"prompt_tokens": 0, "total_tokens": 0},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("cannot encode response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "test"},
	})
}

func testProvider(srvURL string, mutate func(*Config)) *openAIProvider {
	cfg := Config{
		APIKey:         "test-key",
		Model:          "test-embed",
		BaseURL:        srvURL + "/v1",
		Timeout:        5 * time.Second,
		BatchLimit:     64,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return newOpenAI(cfg)
}

func TestEmbedBatch_ReconcilesByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input := decodeInput(t, r)
		// Answer in reverse order; the client must reassemble by index.
		data := make([]embeddingObject, 0, len(input))
		for i := len(input) - 1; i >= 0; i-- {
			data = append(data, embeddingObject{
				Object:    "embedding",
				Index:     i,
				Embedding: []float32{float32(i), 1},
			})
		}
		writeEmbeddings(t, w, data)
	}))
	defer srv.Close()

	prov := testProvider(srv.URL, nil)
	out, err := prov.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range out {
		if v[0] != float32(i) {
			t.Fatalf("vector %d misplaced: got %v", i, v)
		}
	}
	if prov.Dimensions() != 2 {
		t.Fatalf("dim should be learned from the response, got %d", prov.Dimensions())
	}
}

func TestEmbedBatch_SplitsLargeInput(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		input := decodeInput(t, r)
		if len(input) > 2 {
			t.Errorf("batch limit violated: %d inputs in one request", len(input))
		}
		data := make([]embeddingObject, len(input))
		for i := range input {
			data[i] = embeddingObject{Object: "embedding", Index: i, Embedding: []float32{1, 0}}
		}
		writeEmbeddings(t, w, data)
	}))
	defer srv.Close()

	prov := testProvider(srv.URL, func(c *Config) { c.BatchLimit = 2 })
	out, err := prov.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected 5 vectors, got %d", len(out))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 API requests, got %d", got)
	}
}

func TestEmbedBatch_RetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeAPIError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		input := decodeInput(t, r)
		data := make([]embeddingObject, len(input))
		for i := range input {
			data[i] = embeddingObject{Object: "embedding", Index: i, Embedding: []float32{0.5}}
		}
		writeEmbeddings(t, w, data)
	}))
	defer srv.Close()

	prov := testProvider(srv.URL, nil)
	out, err := prov.EmbedBatch(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("EmbedBatch should succeed after retry: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(out))
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestEmbedBatch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusInternalServerError, "backend exploded")
	}))
	defer srv.Close()

	prov := testProvider(srv.URL, nil)
	_, err := prov.EmbedBatch(context.Background(), []string{"hello"})
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	// MaxRetries=2 means one initial attempt plus two retries.
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestEmbedBatch_AuthErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeAPIError(w, http.StatusUnauthorized, "invalid api key")
	}))
	defer srv.Close()

	prov := testProvider(srv.URL, nil)
	_, err := prov.EmbedBatch(context.Background(), []string{"hello"})
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("auth errors must not retry: %d attempts", got)
	}
}

func TestEmbedBatch_ContextCancellationWinsOverRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusInternalServerError, "down")
	}))
	defer srv.Close()

	prov := testProvider(srv.URL, func(c *Config) {
		c.MaxRetries = 10
		c.RetryBaseDelay = 50 * time.Millisecond
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := prov.EmbedBatch(ctx, []string{"hello"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	prov := testProvider("http://127.0.0.1:0", nil)
	if _, err := prov.Embed(context.Background(), ""); !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService for empty text, got %v", err)
	}
}

func TestNew_RequiresKeyAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}); err == nil {
		t.Fatalf("expected error without API key")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatalf("expected error without model")
	}
	if _, err := New(Config{APIKey: "k", Model: "m"}); err != nil {
		t.Fatalf("New: %v", err)
	}
}
