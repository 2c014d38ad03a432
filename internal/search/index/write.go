package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Write writes index artifacts to dir: the manifest, one JSON line per
// chunk and a flat little-endian float32 vector table in chunk order.
// Chunk IDs must be strictly increasing so that row order is the ID order.
func Write(dir string, manifest Manifest, chunks []ChunkRecord, vectors []float32) error {
	if manifest.Dim <= 0 {
		return fmt.Errorf("invalid dim: %d", manifest.Dim)
	}
	if manifest.EmbeddingModel == "" {
		return fmt.Errorf("manifest has no embedding model")
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks to write")
	}
	if len(vectors) != len(chunks)*manifest.Dim {
		return fmt.Errorf("vector length mismatch: got %d want %d", len(vectors), len(chunks)*manifest.Dim)
	}
	docs := map[string]struct{}{}
	for i, c := range chunks {
		if i > 0 && c.ID <= chunks[i-1].ID {
			return fmt.Errorf("chunk IDs out of order: %d after %d", c.ID, chunks[i-1].ID)
		}
		docs[c.Path] = struct{}{}
	}

	if manifest.IndexVersion == 0 {
		manifest.IndexVersion = CurrentIndexVersion
	}
	if manifest.VectorFile == "" {
		manifest.VectorFile = defaultVectorsFile
	}
	if manifest.ChunksFile == "" {
		manifest.ChunksFile = defaultChunksFile
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if manifest.CreatedAt == "" {
		manifest.CreatedAt = now
	}
	if manifest.UpdatedAt == "" {
		manifest.UpdatedAt = now
	}
	manifest.TotalDocuments = len(docs)
	manifest.TotalChunks = len(chunks)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}

	// manifest
	mb, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	// chunks jsonl
	cf, err := os.Create(filepath.Join(dir, manifest.ChunksFile))
	if err != nil {
		return fmt.Errorf("cannot create chunks file: %w", err)
	}
	bw := bufio.NewWriter(cf)
	for _, c := range chunks {
		line, err := json.Marshal(c)
		if err != nil {
			_ = cf.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = cf.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = cf.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = cf.Close()
		return err
	}
	if err := cf.Close(); err != nil {
		return err
	}

	// vectors
	vf, err := os.Create(filepath.Join(dir, manifest.VectorFile))
	if err != nil {
		return fmt.Errorf("cannot create vectors file: %w", err)
	}
	if err := binary.Write(vf, binary.LittleEndian, vectors); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	if err := vf.Close(); err != nil {
		return err
	}

	return nil
}
