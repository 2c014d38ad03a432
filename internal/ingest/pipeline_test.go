package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/localdocs/localdocs-cli/internal/document"
	"github.com/localdocs/localdocs-cli/internal/search/index"
)

// fakeProvider derives a deterministic 4-dim vector from each text.
type fakeProvider struct {
	model      string
	batchCalls int
	embedded   int
}

func (f *fakeProvider) ModelName() string { return f.model }
func (f *fakeProvider) Dimensions() int   { return 4 }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	f.embedded += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		sum := sha256.Sum256([]byte(t))
		v := make([]float32, 4)
		for j := range v {
			v[j] = float32(sum[j]) + 1
		}
		out[i] = v
	}
	return out, nil
}

func writeDocs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testOptions(root string) Options {
	return Options{
		DataDir:      filepath.Join(root, "documents"),
		IndexDir:     filepath.Join(root, "state", "index"),
		TmpDir:       filepath.Join(root, "state", "tmp"),
		ChunkSize:    50,
		ChunkOverlap: 10,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	// a.md: 121 runes -> windows [0,50) [40,90) [80,121). b.md: one window.
	writeDocs(t, opts.DataDir, map[string]string{
		"a.md": strings.Repeat("a", 120) + "\n",
		"b.md": strings.Repeat("b", 30) + "\n",
	})

	prov := &fakeProvider{model: "test-embed"}
	sum, err := Run(context.Background(), prov, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Unchanged {
		t.Fatalf("first run cannot be a no-op")
	}
	if sum.Documents != 2 || sum.Chunks != 4 || sum.Dim != 4 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sum.Skipped) != 0 {
		t.Fatalf("nothing should be skipped: %+v", sum.Skipped)
	}

	idx, err := index.Load(opts.IndexDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx.Manifest.TotalDocuments != 2 || idx.Manifest.TotalChunks != 4 {
		t.Fatalf("manifest = %+v", idx.Manifest)
	}
	if idx.Manifest.EmbeddingModel != "test-embed" || !idx.Manifest.Normalize {
		t.Fatalf("manifest = %+v", idx.Manifest)
	}
	if idx.Manifest.CorpusHash == "" {
		t.Fatalf("manifest is missing the corpus fingerprint")
	}

	// IDs are 1..N in path order; a.md chunks come before b.md.
	for i, c := range idx.Chunks {
		if c.ID != int64(i+1) {
			t.Fatalf("chunk %d has ID %d", i, c.ID)
		}
	}
	if idx.Chunks[0].Start != 0 || idx.Chunks[0].End != 50 {
		t.Fatalf("first window = [%d,%d)", idx.Chunks[0].Start, idx.Chunks[0].End)
	}
	if idx.Chunks[2].Start != 80 || idx.Chunks[2].End != 121 {
		t.Fatalf("tail window = [%d,%d)", idx.Chunks[2].Start, idx.Chunks[2].End)
	}
	if filepath.Base(idx.Chunks[3].Path) != "b.md" || idx.Chunks[3].Type != "md" {
		t.Fatalf("chunk 4 = %+v", idx.Chunks[3])
	}

	// Stored vectors are unit length.
	for i := 0; i < idx.Len(); i++ {
		var norm float64
		for _, x := range idx.Vector(i) {
			norm += float64(x) * float64(x)
		}
		if math.Abs(norm-1) > 1e-5 {
			t.Fatalf("vector %d has squared norm %f", i, norm)
		}
	}
}

func TestRun_UnchangedCorpusIsNoOp(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "some text\n"})

	prov := &fakeProvider{model: "test-embed"}
	if _, err := Run(context.Background(), prov, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}

	sum, err := Run(context.Background(), prov, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !sum.Unchanged {
		t.Fatalf("unchanged corpus must be a no-op")
	}
	if prov.batchCalls != 1 {
		t.Fatalf("no-op run must not embed, got %d batch calls", prov.batchCalls)
	}

	after, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}
	if after.UpdatedAt != before.UpdatedAt || after.CreatedAt != before.CreatedAt {
		t.Fatalf("no-op run must not touch the manifest: %+v vs %+v", before, after)
	}
}

func TestRun_ForceRebuildsAndKeepsCreatedAt(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "some text\n"})

	prov := &fakeProvider{model: "test-embed"}
	if _, err := Run(context.Background(), prov, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}

	opts.Force = true
	sum, err := Run(context.Background(), prov, opts)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if sum.Unchanged {
		t.Fatalf("--force must rebuild")
	}
	if prov.batchCalls != 2 {
		t.Fatalf("forced run must re-embed, got %d batch calls", prov.batchCalls)
	}

	after, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}
	if after.CreatedAt != before.CreatedAt {
		t.Fatalf("rebuild must keep created_at: %q -> %q", before.CreatedAt, after.CreatedAt)
	}
	if _, err := os.Stat(opts.IndexDir + ".bak"); !os.IsNotExist(err) {
		t.Fatalf("backup dir left behind after swap")
	}
}

func TestRun_EditedFileRebuilds(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "version one\n"})

	prov := &fakeProvider{model: "test-embed"}
	if _, err := Run(context.Background(), prov, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}

	writeDocs(t, opts.DataDir, map[string]string{"a.md": "version two\n"})
	sum, err := Run(context.Background(), prov, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Unchanged {
		t.Fatalf("edited corpus must rebuild")
	}

	idx, err := index.Load(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Chunks[0].Text != "version two\n" {
		t.Fatalf("index still holds the old text: %q", idx.Chunks[0].Text)
	}
}

func TestRun_ModelChangeRebuilds(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "some text\n"})

	if _, err := Run(context.Background(), &fakeProvider{model: "model-a"}, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}

	provB := &fakeProvider{model: "model-b"}
	sum, err := Run(context.Background(), provB, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Unchanged {
		t.Fatalf("a model change must rebuild even with an unchanged corpus")
	}
	m, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}
	if m.EmbeddingModel != "model-b" {
		t.Fatalf("manifest model = %q", m.EmbeddingModel)
	}
}

func TestRun_DeclinedConfirmCancels(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "version one\n"})

	prov := &fakeProvider{model: "test-embed"}
	if _, err := Run(context.Background(), prov, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}

	writeDocs(t, opts.DataDir, map[string]string{"a.md": "version two\n"})
	asked := 0
	opts.Confirm = func(existing index.Manifest) bool {
		asked++
		if existing.TotalChunks != before.TotalChunks {
			t.Errorf("confirm sees manifest %+v", existing)
		}
		return false
	}

	sum, err := Run(context.Background(), prov, opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !sum.Cancelled || asked != 1 {
		t.Fatalf("declined rebuild: cancelled=%v asked=%d", sum.Cancelled, asked)
	}
	if prov.batchCalls != 1 {
		t.Fatalf("cancelled run must not embed, got %d batch calls", prov.batchCalls)
	}
	after, err := index.Stats(opts.IndexDir)
	if err != nil {
		t.Fatal(err)
	}
	if after.UpdatedAt != before.UpdatedAt {
		t.Fatalf("cancelled run must leave the index untouched")
	}
}

func TestRun_ForceSkipsConfirm(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "some text\n"})

	prov := &fakeProvider{model: "test-embed"}
	if _, err := Run(context.Background(), prov, opts); err != nil {
		t.Fatalf("first run: %v", err)
	}

	opts.Force = true
	opts.Confirm = func(index.Manifest) bool {
		t.Fatal("--force must never ask")
		return false
	}
	if _, err := Run(context.Background(), prov, opts); err != nil {
		t.Fatalf("forced run: %v", err)
	}
}

func TestRun_EmptyDirFails(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := Run(context.Background(), &fakeProvider{model: "m"}, opts)
	if !errors.Is(err, document.ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestRun_BrokenFileIsSkippedNotFatal(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{
		"good.md":    "useful text\n",
		"broken.pdf": "this is not a pdf",
	})

	sum, err := Run(context.Background(), &fakeProvider{model: "m"}, opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Documents != 1 || len(sum.Skipped) != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if filepath.Base(sum.Skipped[0].Path) != "broken.pdf" {
		t.Fatalf("skipped = %+v", sum.Skipped)
	}
}

func TestRun_CorruptIndexIsRebuilt(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "some text\n"})

	if err := os.MkdirAll(opts.IndexDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.IndexDir, index.ManifestFile), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(context.Background(), &fakeProvider{model: "m"}, opts); err != nil {
		t.Fatalf("Run over a corrupt index: %v", err)
	}
	if _, err := index.Load(opts.IndexDir); err != nil {
		t.Fatalf("index still unusable after rebuild: %v", err)
	}
}

func TestRun_HeldLockTimesOut(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	writeDocs(t, opts.DataDir, map[string]string{"a.md": "some text\n"})
	opts.LockPath = filepath.Join(root, "state", "ingest.lock")
	opts.LockTimeout = 50 * time.Millisecond

	if err := os.MkdirAll(filepath.Dir(opts.LockPath), 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(opts.LockPath)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("cannot pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	_, err = Run(context.Background(), &fakeProvider{model: "m"}, opts)
	if err == nil || !strings.Contains(err.Error(), "another ingest is in progress") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestCorpusFingerprint_Stability(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, map[string]string{"a.md": "one\n", "b.md": "two\n"})
	paths := []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.md")}

	h1, err := CorpusFingerprint(dir, paths)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := CorpusFingerprint(dir, paths)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("fingerprint not stable: %s vs %s", h1, h2)
	}

	writeDocs(t, dir, map[string]string{"b.md": "two changed\n"})
	h3, err := CorpusFingerprint(dir, paths)
	if err != nil {
		t.Fatal(err)
	}
	if h3 == h1 {
		t.Fatalf("content change must change the fingerprint")
	}
}
