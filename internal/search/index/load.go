package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Load reads an index from dir and verifies the artifacts agree with the
// manifest. A missing manifest means no index exists (ErrNotFound); any
// inconsistency after that point wraps ErrCorrupt.
func Load(dir string) (*Index, error) {
	m, err := Stats(dir)
	if err != nil {
		return nil, err
	}

	chunks, err := loadChunks(filepath.Join(dir, m.ChunksFile))
	if err != nil {
		return nil, err
	}
	if len(chunks) != m.TotalChunks {
		return nil, fmt.Errorf("%w: manifest says %d chunks, found %d", ErrCorrupt, m.TotalChunks, len(chunks))
	}

	pos := make(map[int64]int, len(chunks))
	for i, c := range chunks {
		if i > 0 && c.ID <= chunks[i-1].ID {
			return nil, fmt.Errorf("%w: chunk IDs out of order: %d after %d", ErrCorrupt, c.ID, chunks[i-1].ID)
		}
		pos[c.ID] = i
	}

	vectors, err := loadVectors(filepath.Join(dir, m.VectorFile), len(chunks), m.Dim)
	if err != nil {
		return nil, err
	}

	return &Index{Manifest: m, Chunks: chunks, Vectors: vectors, pos: pos}, nil
}

// Stats reads and validates only the manifest. The status command uses it
// to report on an index without paying for the chunk and vector files.
func Stats(dir string) (Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("%w: no manifest in %s", ErrNotFound, dir)
		}
		return Manifest{}, fmt.Errorf("cannot read manifest %s: %w", manifestPath, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: invalid manifest JSON: %v", ErrCorrupt, err)
	}
	if m.IndexVersion > CurrentIndexVersion {
		return Manifest{}, fmt.Errorf("%w: index version %d is newer than this build supports", ErrCorrupt, m.IndexVersion)
	}
	if m.Dim <= 0 {
		return Manifest{}, fmt.Errorf("%w: invalid dim in manifest: %d", ErrCorrupt, m.Dim)
	}
	if m.EmbeddingModel == "" {
		return Manifest{}, fmt.Errorf("%w: manifest has no embedding model", ErrCorrupt)
	}
	if m.VectorFile == "" {
		m.VectorFile = defaultVectorsFile
	}
	if m.ChunksFile == "" {
		m.ChunksFile = defaultChunksFile
	}
	return m, nil
}

func loadChunks(path string) ([]ChunkRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: chunks file %s is missing", ErrCorrupt, path)
		}
		return nil, fmt.Errorf("cannot open chunks file %s: %w", path, err)
	}
	defer f.Close()

	var out []ChunkRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c ChunkRecord
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("%w: invalid chunks JSONL: %v", ErrCorrupt, err)
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read chunks file %s: %w", path, err)
	}
	return out, nil
}

func loadVectors(path string, nChunks, dim int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: vector file %s is missing", ErrCorrupt, path)
		}
		return nil, fmt.Errorf("cannot open vector file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat vector file %s: %w", path, err)
	}
	if st.Size()%4 != 0 {
		return nil, fmt.Errorf("%w: vector file size is not a multiple of 4 bytes: %d", ErrCorrupt, st.Size())
	}

	expected := int64(nChunks * dim * 4)
	if expected != st.Size() {
		return nil, fmt.Errorf("%w: vector file size mismatch: got %d want %d (chunks=%d dim=%d)", ErrCorrupt, st.Size(), expected, nChunks, dim)
	}

	out := make([]float32, nChunks*dim)
	if err := binary.Read(io.LimitReader(f, expected), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("%w: cannot read vectors from %s: %v", ErrCorrupt, path, err)
	}
	return out, nil
}
