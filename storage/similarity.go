package storage

import (
	"cmp"
	"math"
	"slices"

	"github.com/poiesic/ragstream/core"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// CompareHits orders hits by descending score, then ascending chunk id.
func CompareHits(a, b *core.ScoredChunk) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
}

// Rank sorts hits with CompareHits and keeps the first k.
func Rank(hits []*core.ScoredChunk, k int) []*core.ScoredChunk {
	if k <= 0 {
		return []*core.ScoredChunk{}
	}
	slices.SortFunc(hits, CompareHits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
