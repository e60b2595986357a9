package index

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/timmy/hearth/internal/logger"
)

type flatEntry struct {
	id   uint
	vec  []float32
	norm float64
}

// Flat is an exact in-memory index scanning every entry per query.
// Rebuilds and queries are serialized with a RWMutex; a rebuild prepares the
// new content outside the lock and swaps it in.
type Flat struct {
	mu         sync.RWMutex
	dimensions int
	entries    []flatEntry
	built      bool
}

// NewFlat creates an empty flat index for vectors of the given dimension.
// A dimension of 0 accepts whatever dimension the first entry has.
func NewFlat(dimensions int) *Flat {
	return &Flat{dimensions: dimensions}
}

// Rebuild replaces the index content. Entries with an empty vector or a
// dimension other than the index dimension are skipped.
func (f *Flat) Rebuild(ctx context.Context, entries []Entry) error {
	f.mu.RLock()
	dim := f.dimensions
	f.mu.RUnlock()

	next := make([]flatEntry, 0, len(entries))
	skipped := 0
	seen := make(map[uint]struct{}, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(e.Vector) == 0 {
			skipped++
			continue
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			skipped++
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		vec := make([]float32, dim)
		copy(vec, e.Vector)
		next = append(next, flatEntry{id: e.ID, vec: vec, norm: norm(vec)})
	}

	if skipped > 0 {
		logger.CtxWarn(ctx, "Skipped %d entries with missing or mismatched embeddings (dimension=%d)", skipped, dim)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(next) > 0 && f.dimensions != 0 && f.dimensions != dim {
		// A concurrent rebuild fixed a different dimension first.
		return fmt.Errorf("rebuild has dimension %d, index has %d", dim, f.dimensions)
	}
	f.entries = next
	if f.dimensions == 0 && len(next) > 0 {
		f.dimensions = dim
	}
	f.built = true
	return nil
}

// Query returns the k nearest entries by cosine distance.
func (f *Flat) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.entries) == 0 {
		return []Hit{}, nil
	}
	if f.dimensions > 0 && len(vector) != f.dimensions {
		return nil, fmt.Errorf("query vector has dimension %d, index has %d", len(vector), f.dimensions)
	}

	qn := norm(vector)
	hits := make([]Hit, 0, len(f.entries))
	for _, e := range f.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sim := 0.0
		if qn > 0 && e.norm > 0 {
			var dot float64
			for i := range vector {
				dot += float64(vector[i]) * float64(e.vec[i])
			}
			sim = dot / (qn * e.norm)
		}
		hits = append(hits, Hit{ID: e.id, Distance: 1 - sim})
	}

	SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Built reports whether Rebuild has completed at least once.
func (f *Flat) Built() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.built
}

// Len returns the number of indexed entries.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
