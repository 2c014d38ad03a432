package search

import "github.com/localdocs/localdocs-cli/internal/search/index"

// Result is one retrieved chunk. SourceNum is the 1-based citation number
// assigned after score filtering, so numbering is always contiguous.
type Result struct {
	SourceNum int
	Chunk     index.ChunkRecord
	Score     float64
}
