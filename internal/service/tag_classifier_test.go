package service

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/timmy/hearth/internal/domain"
)

func unitAt(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func TestClassifyEmbeddingThresholdBoundary(t *testing.T) {
	query := []float32{1, 0}
	taxonomy := NewTaxonomy([]domain.Tag{
		{ID: 1, Name: "exact", Category: domain.TagCategoryTopic, Embedding: unitAt(0.8)},
		{ID: 2, Name: "below", Category: domain.TagCategoryTopic, Embedding: unitAt(0.7999)},
		{ID: 3, Name: "above", Category: domain.TagCategoryTopic, Embedding: unitAt(0.95)},
	})

	got := ClassifyEmbedding(query, taxonomy, DefaultTagSimilarityThreshold)
	names := make([]string, len(got))
	for i, tag := range got {
		names[i] = tag.Name
	}
	want := []string{"above", "exact"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("ClassifyEmbedding() = %v, want %v", names, want)
	}
}

func TestClassifyEmbeddingOrderAndDeterminism(t *testing.T) {
	query := []float32{1, 0, 0}
	tags := []domain.Tag{
		{ID: 1, Name: "Stove Stacking", Category: domain.TagCategoryTopic, Embedding: []float32{1, 0, 0}},
		{ID: 2, Name: "LPG", Category: domain.TagCategoryTechnology, Embedding: []float32{1, 0, 0}},
		{ID: 3, Name: "Uganda", Category: domain.TagCategoryRegion, Embedding: []float32{1, 0, 0}},
		{ID: 4, Name: "Adoption", Category: domain.TagCategoryTopic, Embedding: []float32{1, 0, 0}},
		{ID: 5, Name: "Unembedded", Category: domain.TagCategoryTopic},
		{ID: 6, Name: "Orthogonal", Category: domain.TagCategoryRegion, Embedding: []float32{0, 1, 0}},
	}
	taxonomy := NewTaxonomy(tags)
	if taxonomy.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", taxonomy.Len())
	}

	first := ClassifyEmbedding(query, taxonomy, 0.8)
	second := ClassifyEmbedding(query, taxonomy, 0.8)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ClassifyEmbedding() not deterministic: %v vs %v", first, second)
	}

	var names []string
	for _, tag := range first {
		names = append(names, tag.Name)
	}
	want := []string{"Uganda", "Adoption", "Stove Stacking", "LPG"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("ClassifyEmbedding() = %v, want %v", names, want)
	}
}

func TestClassifyEmbeddingEmptyInputs(t *testing.T) {
	taxonomy := NewTaxonomy([]domain.Tag{{Name: "x", Category: domain.TagCategoryTopic, Embedding: []float32{1}}})
	if got := ClassifyEmbedding(nil, taxonomy, 0.8); got == nil || len(got) != 0 {
		t.Fatalf("ClassifyEmbedding(nil) = %v, want empty non-nil", got)
	}
	if got := ClassifyEmbedding([]float32{1}, nil, 0.8); len(got) != 0 {
		t.Fatalf("ClassifyEmbedding(nil taxonomy) = %v, want empty", got)
	}
}

func TestTaxonomyByCategory(t *testing.T) {
	taxonomy := NewTaxonomy([]domain.Tag{
		{Name: "Kenya", Category: domain.TagCategoryRegion, Embedding: []float32{1}},
		{Name: "Asia", Category: domain.TagCategoryRegion, Embedding: []float32{1}},
		{Name: "LPG", Category: domain.TagCategoryTechnology, Embedding: []float32{1}},
	})
	got := taxonomy.ByCategory()
	if !reflect.DeepEqual(got[domain.TagCategoryRegion], []string{"Asia", "Kenya"}) {
		t.Fatalf("ByCategory()[region] = %v", got[domain.TagCategoryRegion])
	}
	if len(got[domain.TagCategoryTechnology]) != 1 {
		t.Fatalf("ByCategory()[technology] = %v", got[domain.TagCategoryTechnology])
	}
}

func TestTagClassifierClassify(t *testing.T) {
	embedder := newFakeEmbedder(nil)
	embedder.vectors["clean cooking in Kampala"] = []float32{1, 0}
	tags := staticTags{
		{ID: 1, Name: "Uganda", Category: domain.TagCategoryRegion, Embedding: []float32{0.9, 0.1}},
		{ID: 2, Name: "Solar", Category: domain.TagCategoryTechnology, Embedding: []float32{0, 1}},
	}
	classifier := NewTagClassifier(tags, embedder, -1)
	if classifier.Threshold() != DefaultTagSimilarityThreshold {
		t.Fatalf("Threshold() = %v, want default", classifier.Threshold())
	}

	got, err := classifier.Classify(context.Background(), "clean cooking in Kampala")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Uganda" {
		t.Fatalf("Classify() = %v, want [Uganda]", got)
	}
}

func TestTagClassifierZeroThresholdMatchesEverything(t *testing.T) {
	embedder := newFakeEmbedder(nil)
	embedder.vectors["clean cooking in Kampala"] = []float32{1, 0}
	tags := staticTags{
		{ID: 1, Name: "Uganda", Category: domain.TagCategoryRegion, Embedding: []float32{0.9, 0.1}},
		{ID: 2, Name: "Solar", Category: domain.TagCategoryTechnology, Embedding: []float32{0, 1}},
	}
	classifier := NewTagClassifier(tags, embedder, 0)
	if classifier.Threshold() != 0 {
		t.Fatalf("Threshold() = %v, want 0", classifier.Threshold())
	}

	got, err := classifier.Classify(context.Background(), "clean cooking in Kampala")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Classify() = %v, want both tags", got)
	}
}

func TestTagClassifierClassifyEmbeddingFailure(t *testing.T) {
	embedder := newFakeEmbedder(nil)
	embedder.failAll = true
	classifier := NewTagClassifier(staticTags{}, embedder, 0.8)

	_, err := classifier.Classify(context.Background(), "anything")
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("Classify() error = %v, want ErrEmbeddingFailure", err)
	}
}

type countingTags struct {
	staticTags
	loads int
}

func (c *countingTags) ListWithEmbeddings(ctx context.Context) ([]domain.Tag, error) {
	c.loads++
	return c.staticTags.ListWithEmbeddings(ctx)
}

func TestTagClassifierCachesTaxonomyUntilReload(t *testing.T) {
	source := &countingTags{staticTags: staticTags{{Name: "LPG", Category: domain.TagCategoryTechnology, Embedding: []float32{1, 0}}}}
	classifier := NewTagClassifier(source, newFakeEmbedder([]float32{1, 0}), 0.8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := classifier.ClassifyVector(ctx, []float32{1, 0}); err != nil {
			t.Fatalf("ClassifyVector() error = %v", err)
		}
	}
	if source.loads != 1 {
		t.Fatalf("loads = %d, want 1", source.loads)
	}

	source.staticTags = append(source.staticTags, domain.Tag{Name: "Biomass", Category: domain.TagCategoryTechnology, Embedding: []float32{1, 0}})
	if _, err := classifier.LoadTaxonomy(ctx); err != nil {
		t.Fatalf("LoadTaxonomy() error = %v", err)
	}
	got, err := classifier.ClassifyVector(ctx, []float32{1, 0})
	if err != nil {
		t.Fatalf("ClassifyVector() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ClassifyVector() after reload = %v, want 2 tags", got)
	}
}

func TestTagClassifierDoesNotCacheEmptyTaxonomy(t *testing.T) {
	source := &countingTags{}
	classifier := NewTagClassifier(source, newFakeEmbedder([]float32{1, 0}), 0.8)
	ctx := context.Background()

	got, err := classifier.ClassifyVector(ctx, []float32{1, 0})
	if err != nil {
		t.Fatalf("ClassifyVector() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ClassifyVector() on empty store = %v", got)
	}

	// Tags embedded by another process after the first lookup.
	source.staticTags = staticTags{{Name: "LPG", Category: domain.TagCategoryTechnology, Embedding: []float32{1, 0}}}
	got, err = classifier.ClassifyVector(ctx, []float32{1, 0})
	if err != nil {
		t.Fatalf("ClassifyVector() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "LPG" {
		t.Fatalf("ClassifyVector() = %v, want [LPG] without an explicit reload", got)
	}
	if source.loads != 2 {
		t.Fatalf("loads = %d, want 2", source.loads)
	}
}

func TestTagClassifierRefreshesStaleTaxonomy(t *testing.T) {
	source := &countingTags{staticTags: staticTags{{Name: "LPG", Category: domain.TagCategoryTechnology, Embedding: []float32{1, 0}}}}
	classifier := NewTagClassifier(source, newFakeEmbedder([]float32{1, 0}), 0.8)
	classifier.SetRefreshInterval(time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	classifier.now = func() time.Time { return clock }
	ctx := context.Background()

	if _, err := classifier.Taxonomy(ctx); err != nil {
		t.Fatalf("Taxonomy() error = %v", err)
	}
	source.staticTags = append(source.staticTags, domain.Tag{Name: "Biomass", Category: domain.TagCategoryTechnology, Embedding: []float32{1, 0}})

	clock = clock.Add(30 * time.Second)
	taxonomy, err := classifier.Taxonomy(ctx)
	if err != nil {
		t.Fatalf("Taxonomy() error = %v", err)
	}
	if taxonomy.Len() != 1 || source.loads != 1 {
		t.Fatalf("within interval: Len() = %d, loads = %d, want 1 and 1", taxonomy.Len(), source.loads)
	}

	clock = clock.Add(time.Minute)
	taxonomy, err = classifier.Taxonomy(ctx)
	if err != nil {
		t.Fatalf("Taxonomy() error = %v", err)
	}
	if taxonomy.Len() != 2 || source.loads != 2 {
		t.Fatalf("after interval: Len() = %d, loads = %d, want 2 and 2", taxonomy.Len(), source.loads)
	}
}
