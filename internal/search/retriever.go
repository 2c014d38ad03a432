package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/localdocs/localdocs-cli/internal/embeddings"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

// ErrModelMismatch indicates the index was built with a different embedding
// model than the one currently configured. Scores across models are not
// comparable, so the index must be rebuilt before it can be queried.
var ErrModelMismatch = errors.New("index embedding model mismatch")

const defaultTopK = 3

// Retriever embeds a query and ranks index chunks against it.
type Retriever struct {
	Index    *index.Index
	Provider embeddings.Provider

	TopK     int     // defaults to 3
	MinScore float64 // 0 disables the similarity floor
}

// Retrieve returns the top chunks for query, filtered by MinScore and
// renumbered 1..n. An empty slice means nothing scored above the floor.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if err := r.checkModel(); err != nil {
		return nil, err
	}

	qv, err := r.Provider.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(qv) != r.Index.Manifest.Dim {
		return nil, fmt.Errorf("%w: model %q returned %d dims, index has %d (run `localdocs ingest --force`)",
			ErrModelMismatch, r.Provider.ModelName(), len(qv), r.Index.Manifest.Dim)
	}
	if r.Index.Manifest.Normalize {
		qv = index.NormalizeL2(qv)
	}

	k := r.TopK
	if k <= 0 {
		k = defaultTopK
	}
	hits, err := r.Index.Search(qv, k)
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		if r.MinScore > 0 && h.Score < r.MinScore {
			continue
		}
		out = append(out, Result{
			SourceNum: len(out) + 1,
			Chunk:     r.Index.Chunks[h.Row],
			Score:     h.Score,
		})
	}
	return out, nil
}

// checkModel fails fast when the configured model cannot have produced the
// index, before any embedding call is spent.
func (r *Retriever) checkModel() error {
	got := r.Provider.ModelName()
	want := r.Index.Manifest.EmbeddingModel
	if got != want {
		return fmt.Errorf("%w: index was built with %q but config says %q (run `localdocs ingest --force`)",
			ErrModelMismatch, want, got)
	}
	if d := r.Provider.Dimensions(); d > 0 && d != r.Index.Manifest.Dim {
		return fmt.Errorf("%w: model %q produces %d dims, index has %d (run `localdocs ingest --force`)",
			ErrModelMismatch, got, d, r.Index.Manifest.Dim)
	}
	return nil
}
