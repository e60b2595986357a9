package index

import (
	"context"
	"math"
	"sync"
	"testing"
)

func TestFlatQueryEmpty(t *testing.T) {
	f := NewFlat(2)
	hits, err := f.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Fatalf("Query() = %v, want empty non-nil slice", hits)
	}
	if f.Built() {
		t.Fatal("new index should not be built")
	}
}

func TestFlatQueryOrderAndTies(t *testing.T) {
	f := NewFlat(2)
	entries := []Entry{
		{ID: 7, Vector: []float32{0, 1}},
		{ID: 3, Vector: []float32{1, 0}},
		{ID: 1, Vector: []float32{2, 0}}, // same direction as 3, ties on distance
		{ID: 5, Vector: []float32{1, 1}},
	}
	if err := f.Rebuild(context.Background(), entries); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	hits, err := f.Query(context.Background(), []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	wantIDs := []uint{1, 3, 5, 7}
	if len(hits) != len(wantIDs) {
		t.Fatalf("got %d hits, want %d", len(hits), len(wantIDs))
	}
	for i, id := range wantIDs {
		if hits[i].ID != id {
			t.Errorf("hits[%d].ID = %d, want %d", i, hits[i].ID, id)
		}
	}
	if math.Abs(hits[0].Distance) > 1e-9 {
		t.Errorf("hits[0].Distance = %v, want 0", hits[0].Distance)
	}
	if math.Abs(hits[3].Distance-1) > 1e-9 {
		t.Errorf("hits[3].Distance = %v, want 1", hits[3].Distance)
	}
}

func TestFlatQueryLimitsK(t *testing.T) {
	f := NewFlat(2)
	_ = f.Rebuild(context.Background(), []Entry{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1}},
		{ID: 3, Vector: []float32{1, 1}},
	})
	hits, err := f.Query(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits, _ := f.Query(context.Background(), []float32{1, 0}, 0); len(hits) != 0 {
		t.Fatalf("k=0 returned %d hits", len(hits))
	}
}

func TestFlatRebuildIdempotentAndSkipsBadDims(t *testing.T) {
	f := NewFlat(3)
	entries := []Entry{
		{ID: 1, Vector: []float32{1, 0, 0}},
		{ID: 2, Vector: []float32{1, 0}},
		{ID: 3, Vector: nil},
		{ID: 4, Vector: []float32{0, 0, 1}},
	}
	for i := 0; i < 2; i++ {
		if err := f.Rebuild(context.Background(), entries); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
		if f.Len() != 2 {
			t.Fatalf("after rebuild %d: Len() = %d, want 2", i, f.Len())
		}
	}
	if !f.Built() {
		t.Fatal("index should be built")
	}
}

func TestFlatQueryDimensionMismatch(t *testing.T) {
	f := NewFlat(2)
	_ = f.Rebuild(context.Background(), []Entry{{ID: 1, Vector: []float32{1, 0}}})
	if _, err := f.Query(context.Background(), []float32{1, 0, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestFlatConcurrentRebuildAndQuery(t *testing.T) {
	f := NewFlat(2)
	entries := []Entry{{ID: 1, Vector: []float32{1, 0}}, {ID: 2, Vector: []float32{0, 1}}}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.Rebuild(context.Background(), entries)
		}()
		go func() {
			defer wg.Done()
			hits, err := f.Query(context.Background(), []float32{1, 0}, 2)
			if err != nil {
				t.Errorf("Query() error = %v", err)
				return
			}
			if len(hits) != 0 && len(hits) != 2 {
				t.Errorf("observed partial index: %d hits", len(hits))
			}
		}()
	}
	wg.Wait()
}

func TestFlatConcurrentRebuildInfersDimension(t *testing.T) {
	f := NewFlat(0)
	entries := []Entry{{ID: 1, Vector: []float32{1, 0, 0}}, {ID: 2, Vector: []float32{0, 1, 0}}}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.Rebuild(context.Background(), entries); err != nil {
				t.Errorf("Rebuild() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if f.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", f.Len())
	}
	if _, err := f.Query(context.Background(), []float32{1, 0}, 1); err == nil {
		t.Fatal("expected dimension mismatch after the inferred dimension was fixed")
	}
	if err := f.Rebuild(context.Background(), []Entry{{ID: 3, Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if f.Len() != 0 {
		t.Fatalf("Len() = %d, want mismatched entries skipped", f.Len())
	}
}

func TestRelevance(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.123, 0.88},
		{1, 0},
		{1.7, 0},
		{-0.2, 1},
	}
	for _, tt := range tests {
		if got := Relevance(tt.distance); got != tt.want {
			t.Errorf("Relevance(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal = %v", got)
	}
	if got := CosineSimilarity([]float32{1, 2}, []float32{2, 4}); math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel = %v", got)
	}
	if got := CosineSimilarity([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched = %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 2}); got != 0 {
		t.Errorf("zero norm = %v", got)
	}
}
