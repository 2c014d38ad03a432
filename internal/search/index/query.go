package index

import "sort"

// Hit is one scored chunk row.
type Hit struct {
	ChunkID int64
	Row     int
	Score   float64
}

// Search scores every row against query by dot product and returns the top
// k hits ordered by score descending, chunk ID ascending on exact ties.
// The query must already be normalized if the index vectors are.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != x.Manifest.Dim {
		return nil, ErrVectorLengthMismatch
	}
	if k <= 0 || x.Len() == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, x.Len())
	for i := range x.Chunks {
		score, err := Dot(query, x.Vector(i))
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{ChunkID: x.Chunks[i].ID, Row: i, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}
