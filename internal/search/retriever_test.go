package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/localdocs/localdocs-cli/internal/search/index"
)

type fakeProvider struct {
	model string
	dim   int
	vecs  map[string][]float32
	calls int
}

func (f *fakeProvider) ModelName() string { return f.model }
func (f *fakeProvider) Dimensions() int   { return f.dim }

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	v, ok := f.vecs[text]
	if !ok {
		return nil, fmt.Errorf("no fake vector for %q", text)
	}
	return v, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func buildTestIndex(t *testing.T, model string, vectors [][]float32) *index.Index {
	t.Helper()
	dir := t.TempDir()
	var chunks []index.ChunkRecord
	var flat []float32
	for i, v := range vectors {
		chunks = append(chunks, index.ChunkRecord{
			ID:   int64(i + 1),
			Path: "/docs/notes.md", Type: "md",
			Text:  fmt.Sprintf("chunk %d", i+1),
			Start: i * 10, End: i*10 + 10,
		})
		flat = append(flat, index.NormalizeL2(v)...)
	}
	m := index.Manifest{EmbeddingModel: model, Dim: len(vectors[0]), Normalize: true}
	if err := index.Write(dir, m, chunks, flat); err != nil {
		t.Fatalf("Write: %v", err)
	}
	idx, err := index.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return idx
}

func TestRetrieve_FiltersAndRenumbers(t *testing.T) {
	idx := buildTestIndex(t, "test-embed", [][]float32{
		{1, 0},   // id 1: score 1.0
		{0, 1},   // id 2: score 0.0
		{0.7, 0.7}, // id 3: score ~0.707
	})
	prov := &fakeProvider{model: "test-embed", vecs: map[string][]float32{
		"right": {1, 0},
	}}

	r := &Retriever{Index: idx, Provider: prov, TopK: 3, MinScore: 0.5}
	results, err := r.Retrieve(context.Background(), "right")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results above the floor, got %d", len(results))
	}
	// Numbering stays contiguous even though the filter dropped a hit.
	if results[0].SourceNum != 1 || results[0].Chunk.ID != 1 {
		t.Fatalf("result 0 = %+v", results[0])
	}
	if results[1].SourceNum != 2 || results[1].Chunk.ID != 3 {
		t.Fatalf("result 1 = %+v", results[1])
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("results out of score order")
	}
}

func TestRetrieve_NothingAboveFloor(t *testing.T) {
	idx := buildTestIndex(t, "test-embed", [][]float32{{0, 1}, {0, 1}})
	prov := &fakeProvider{model: "test-embed", vecs: map[string][]float32{
		"q": {1, 0},
	}}

	r := &Retriever{Index: idx, Provider: prov, TopK: 3, MinScore: 0.5}
	results, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestRetrieve_ZeroFloorKeepsEverything(t *testing.T) {
	idx := buildTestIndex(t, "test-embed", [][]float32{{1, 0}, {-1, 0}})
	prov := &fakeProvider{model: "test-embed", vecs: map[string][]float32{
		"q": {1, 0},
	}}

	r := &Retriever{Index: idx, Provider: prov, TopK: 5, MinScore: 0}
	results, err := r.Retrieve(context.Background(), "q")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	// Even the negative-similarity chunk survives with the floor disabled.
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestRetrieve_ModelMismatchFailsBeforeEmbedding(t *testing.T) {
	idx := buildTestIndex(t, "text-embedding-3-small", [][]float32{{1, 0}})
	prov := &fakeProvider{model: "text-embedding-3-large", vecs: map[string][]float32{}}

	r := &Retriever{Index: idx, Provider: prov}
	_, err := r.Retrieve(context.Background(), "q")
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("no embedding should be spent on a mismatched model, got %d calls", prov.calls)
	}
}

func TestRetrieve_DimensionDriftDetected(t *testing.T) {
	idx := buildTestIndex(t, "test-embed", [][]float32{{1, 0}})
	prov := &fakeProvider{model: "test-embed", vecs: map[string][]float32{
		"q": {1, 0, 0}, // model now answers with 3 dims
	}}

	r := &Retriever{Index: idx, Provider: prov}
	_, err := r.Retrieve(context.Background(), "q")
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	idx := buildTestIndex(t, "test-embed", [][]float32{{1, 0}})
	prov := &fakeProvider{model: "test-embed"}

	r := &Retriever{Index: idx, Provider: prov}
	if _, err := r.Retrieve(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for blank query")
	}
}
