// Package ingest builds the chunk index from a documents directory.
//
// A run is: discover files, fingerprint the corpus, load and chunk every
// document, embed all chunk texts, write the artifacts to a staging
// directory and atomically swap it into place. Re-running over an
// unchanged corpus is a no-op that never touches the network.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/localdocs/localdocs-cli/internal/chunk"
	"github.com/localdocs/localdocs-cli/internal/document"
	"github.com/localdocs/localdocs-cli/internal/embeddings"
	"github.com/localdocs/localdocs-cli/internal/logger"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

// Options controls one ingest run. DataDir, IndexDir and TmpDir are
// required; TmpDir must sit on the same filesystem as IndexDir for the
// final rename to be atomic.
type Options struct {
	DataDir      string
	IndexDir     string
	TmpDir       string
	LockPath     string // empty disables locking
	LockTimeout  time.Duration
	ChunkSize    int
	ChunkOverlap int
	MaxParallel  int // document loads in flight, 0 = auto
	Force        bool

	// Confirm, when set, is asked before an existing valid index is
	// rebuilt over a changed corpus. Returning false cancels the run.
	// Force skips the question.
	Confirm func(existing index.Manifest) bool
}

// Summary reports what an ingest run did.
type Summary struct {
	Documents int
	Chunks    int
	Dim       int
	Skipped   []document.LoadError
	Unchanged bool // corpus fingerprint matched, index left as-is
	Cancelled bool // user declined the rebuild
	Duration  time.Duration
}

// Run executes the pipeline and returns a summary. Per-file load failures
// are reported in the summary, not fatal; an empty or fully unloadable
// corpus is fatal with document.ErrNoDocuments.
func Run(ctx context.Context, prov embeddings.Provider, opts Options) (*Summary, error) {
	start := time.Now()

	if opts.LockPath != "" {
		timeout := opts.LockTimeout
		if timeout <= 0 {
			timeout = defaultLockTimeout
		}
		release, err := acquireLock(opts.LockPath, timeout)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	paths, err := document.Discover(opts.DataDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w under %s", document.ErrNoDocuments, opts.DataDir)
	}

	hash, err := CorpusFingerprint(opts.DataDir, paths)
	if err != nil {
		return nil, err
	}

	// An existing index contributes its creation time and, when the corpus
	// and model both match, short-circuits the whole run.
	var createdAt string
	if old, err := index.Stats(opts.IndexDir); err == nil {
		createdAt = old.CreatedAt
		if !opts.Force && old.CorpusHash == hash && old.EmbeddingModel == prov.ModelName() {
			logger.Info("corpus unchanged, keeping existing index")
			return &Summary{
				Documents: old.TotalDocuments,
				Chunks:    old.TotalChunks,
				Dim:       old.Dim,
				Unchanged: true,
				Duration:  time.Since(start),
			}, nil
		}
		if !opts.Force && opts.Confirm != nil && !opts.Confirm(old) {
			return &Summary{Cancelled: true, Duration: time.Since(start)}, nil
		}
	} else if !errors.Is(err, index.ErrNotFound) {
		logger.Warn("existing index is unusable, rebuilding: %v", err)
	}

	res, err := document.LoadFiles(ctx, paths, opts.MaxParallel)
	if err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, fmt.Errorf("%w under %s (%d files failed to load)", document.ErrNoDocuments, opts.DataDir, len(res.Skipped))
	}

	// Chunk serially in path order so IDs come out the same on every run.
	var (
		ids    chunk.Counter
		chunks []chunk.Chunk
	)
	for i := range res.Documents {
		cs, err := chunk.Split(&res.Documents[i], opts.ChunkSize, opts.ChunkOverlap, &ids)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no text to index under %s", document.ErrNoDocuments, opts.DataDir)
	}
	logger.Info("chunked %d documents into %d chunks", len(res.Documents), len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := prov.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	flat := make([]float32, 0, len(vectors)*dim)
	records := make([]index.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = index.ChunkRecord{
			ID:      c.ID,
			Path:    c.Path,
			Type:    string(c.Type),
			Text:    c.Text,
			Start:   c.Start,
			End:     c.End,
			Page:    c.Page,
			Section: c.Section,
		}
		flat = append(flat, index.NormalizeL2(vectors[i])...)
	}

	manifest := index.Manifest{
		EmbeddingModel: prov.ModelName(),
		Dim:            dim,
		Normalize:      true,
		CorpusHash:     hash,
		CreatedAt:      createdAt, // empty on first build, Write fills it
	}

	if err := os.MkdirAll(opts.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create staging dir %s: %w", opts.TmpDir, err)
	}
	stage, err := os.MkdirTemp(opts.TmpDir, "index-")
	if err != nil {
		return nil, fmt.Errorf("cannot create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := index.Write(stage, manifest, records, flat); err != nil {
		return nil, err
	}
	if err := index.AtomicSwap(stage, opts.IndexDir); err != nil {
		return nil, fmt.Errorf("cannot install new index: %w", err)
	}
	logger.Info("index installed at %s (%d chunks, dim %d)", opts.IndexDir, len(records), dim)

	return &Summary{
		Documents: len(res.Documents),
		Chunks:    len(records),
		Dim:       dim,
		Skipped:   res.Skipped,
		Duration:  time.Since(start),
	}, nil
}
