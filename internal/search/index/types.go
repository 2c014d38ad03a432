package index

import "path/filepath"

// CurrentIndexVersion is written into every new manifest. Loaders reject
// manifests with a higher version than they understand.
const CurrentIndexVersion = 1

// Artifact file names inside an index directory.
const (
	ManifestFile       = "manifest.json"
	defaultChunksFile  = "chunks.jsonl"
	defaultVectorsFile = "vectors.f32"
)

// Manifest describes a chunk index and how to interpret it.
type Manifest struct {
	IndexVersion   int    `json:"index_version"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	EmbeddingModel string `json:"embedding_model"`
	Dim            int    `json:"dim"`
	Normalize      bool   `json:"normalize"`
	CorpusHash     string `json:"corpus_hash"`
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	VectorFile     string `json:"vector_file"`
	ChunksFile     string `json:"chunks_file"`
}

// ChunkRecord is one chunk row in chunks.jsonl. Offsets are rune offsets
// into the normalized document text. Page is zero for formats without
// pages; Section is empty for formats without headings.
type ChunkRecord struct {
	ID      int64  `json:"id"`
	Path    string `json:"path"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// FileName returns the base name of the source document.
func (r ChunkRecord) FileName() string {
	return filepath.Base(r.Path)
}

// Index is a loaded chunk index. Vectors is a flat row-major table: the
// vector for Chunks[i] occupies Vectors[i*Dim : (i+1)*Dim].
type Index struct {
	Manifest Manifest
	Chunks   []ChunkRecord
	Vectors  []float32

	pos map[int64]int // chunk ID -> row
}

// Len returns the number of chunk rows.
func (x *Index) Len() int {
	return len(x.Chunks)
}

// Vector returns the embedding for row i.
func (x *Index) Vector(i int) []float32 {
	d := x.Manifest.Dim
	return x.Vectors[i*d : (i+1)*d]
}

// ByID returns the chunk record with the given ID.
func (x *Index) ByID(id int64) (ChunkRecord, bool) {
	i, ok := x.pos[id]
	if !ok {
		return ChunkRecord{}, false
	}
	return x.Chunks[i], true
}
