// Package importer copies documents into the configured documents
// directory, skipping identical duplicates and never overwriting files
// whose content differs.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/localdocs/localdocs-cli/internal/document"
	"github.com/localdocs/localdocs-cli/internal/logger"
)

// ConflictPair records a name collision with differing content.
type ConflictPair struct {
	Existing string // path of the file already in the documents directory
	Stored   string // path where the incoming version was stored instead
}

// Result is returned by ImportDir.
type Result struct {
	Imported    int // files copied, including conflict copies
	Skipped     int // identical duplicates skipped
	Unsupported int // files with an unsupported extension, left behind
	Conflicts   []ConflictPair
}

// ImportDir copies every supported document under srcDir into dstDir,
// preserving the relative directory layout. A destination file with the
// same content is skipped; one with different content is left untouched
// and the incoming file is stored under a numbered sibling name.
func ImportDir(srcDir, dstDir string) (*Result, error) {
	result := &Result{}

	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != srcDir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !document.Supported(path) {
			result.Unsupported++
			logger.Debug("not a supported document, leaving behind: %s", path)
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstDir, rel)

		if _, err := os.Stat(dst); err == nil {
			srcSum, err := fileHash(path)
			if err != nil {
				return err
			}
			dstSum, err := fileHash(dst)
			if err != nil {
				return err
			}
			if srcSum == dstSum {
				result.Skipped++
				return nil
			}
			stored, err := conflictPath(dst)
			if err != nil {
				return err
			}
			if err := copyFile(path, stored); err != nil {
				return fmt.Errorf("cannot copy %s to %s: %w", path, stored, err)
			}
			result.Imported++
			result.Conflicts = append(result.Conflicts, ConflictPair{Existing: dst, Stored: stored})
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("cannot copy %s to %s: %w", path, dst, err)
		}
		result.Imported++
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// conflictPath picks the first free numbered sibling name:
//
//	manual.pdf → manual.1.pdf, manual.2.pdf, ...
func conflictPath(original string) (string, error) {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	for i := 1; i <= 100; i++ {
		candidate := fmt.Sprintf("%s.%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free conflict name for %s", original)
}

// fileHash returns the hex SHA-256 digest of the file at path.
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

// copyFile copies src to dst, preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
