// Package chunk splits document text into overlapping windows for
// embedding. Splitting is deterministic: the same text and parameters
// always produce the same boundaries, and IDs are handed out by a single
// run-wide counter so every chunk is unique and ordered.
package chunk

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/localdocs/localdocs-cli/internal/document"
)

// ErrInvalidWindow is returned when overlap and size cannot form a sliding
// window. Configuration validation catches this before any I/O; the check
// here guards direct callers.
var ErrInvalidWindow = errors.New("chunk overlap must be smaller than chunk size")

// Chunk is one window of a document, addressed by rune offsets into the
// document's extracted text.
type Chunk struct {
	ID      int64
	Path    string
	Type    document.Type
	Text    string
	Start   int // rune offset, inclusive
	End     int // rune offset, exclusive
	Page    int
	Section string
}

// Counter hands out run-wide chunk IDs: 1, 2, 3, ... Safe for concurrent
// use, though ingestion assigns IDs serially to keep them reproducible.
type Counter struct {
	n atomic.Int64
}

// Next returns the next ID.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Split cuts doc.Text into windows of size runes advancing by size-overlap,
// keeping the final short window. A document shorter than size yields one
// chunk; empty text yields none.
func Split(doc *document.Document, size, overlap int, ids *Counter) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidWindow, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d overlap %d", ErrInvalidWindow, size, overlap)
	}

	runes := []rune(doc.Text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []Chunk
	for start := 0; start < n; start += step {
		end := start + size
		if end > n {
			end = n
		}
		page, section := doc.Locate(start)
		chunks = append(chunks, Chunk{
			ID:      ids.Next(),
			Path:    doc.Path,
			Type:    doc.Type,
			Text:    string(runes[start:end]),
			Start:   start,
			End:     end,
			Page:    page,
			Section: section,
		})
		if end == n {
			break
		}
	}
	return chunks, nil
}
