package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CorpusFingerprint hashes the discovered corpus: each file's path relative
// to root, its size and its content hash, in sorted path order. An index
// whose manifest carries the same fingerprint was built from byte-identical
// input.
func CorpusFingerprint(root string, paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = p
		}
		st, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("cannot stat %s: %w", p, err)
		}
		fh, err := fileHash(p)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s\x00%d\x00%s\n", filepath.ToSlash(rel), st.Size(), fh)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
