// Package index holds the document vector index used by internal search.
//
// The index is derived state: it is rebuilt from the document store and is
// never authoritative. Writes to the store become visible only after the next
// Rebuild, so callers that need fresh results trigger a rebuild explicitly.
package index

import (
	"context"
	"math"
	"sort"
)

// Entry is one document embedding fed to Rebuild.
type Entry struct {
	ID     uint
	Vector []float32
}

// Hit is a nearest-neighbour result. Distance is cosine distance (1 - cosine similarity).
type Hit struct {
	ID       uint
	Distance float64
}

// VectorIndex answers "k nearest documents to v".
type VectorIndex interface {
	// Rebuild replaces the index content. Calling it twice with the same
	// entries leaves the index in the same state.
	Rebuild(ctx context.Context, entries []Entry) error

	// Query returns up to k hits ordered by ascending distance, ties broken by
	// ascending ID. An empty index yields an empty slice and no error.
	Query(ctx context.Context, vector []float32, k int) ([]Hit, error)

	// Built reports whether Rebuild has completed at least once.
	Built() bool

	// Len returns the number of indexed documents.
	Len() int
}

// CosineSimilarity returns the cosine similarity of a and b, computed in float64.
// Zero-length or zero-norm vectors and mismatched lengths yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Relevance converts a cosine distance to a score in [0,1] rounded to two decimals.
func Relevance(distance float64) float64 {
	score := math.Round((1-distance)*100) / 100
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// SortHits orders hits by distance, then ID.
func SortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
}
