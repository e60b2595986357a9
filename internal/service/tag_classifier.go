package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/index"
	"github.com/timmy/hearth/internal/logger"
)

const (
	// DefaultTagSimilarityThreshold is the minimum cosine similarity for a tag to apply.
	DefaultTagSimilarityThreshold = 0.8
	// DefaultTaxonomyRefresh is how long a loaded taxonomy is reused before
	// the tag store is read again.
	DefaultTaxonomyRefresh = 5 * time.Minute
)

// similarityEpsilon absorbs float32 rounding so a similarity of exactly the
// threshold is never lost to representation error.
const similarityEpsilon = 1e-6

// Taxonomy is the set of candidate tags that carry an embedding, ordered by
// category then name.
type Taxonomy struct {
	tags []domain.Tag
}

// NewTaxonomy keeps the embedded tags and fixes their evaluation order.
func NewTaxonomy(tags []domain.Tag) *Taxonomy {
	rank := make(map[domain.TagCategory]int, len(domain.TagCategories))
	for i, c := range domain.TagCategories {
		rank[c] = i
	}
	kept := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		if len(t.Embedding) > 0 {
			kept = append(kept, t)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ri, rj := rank[kept[i].Category], rank[kept[j].Category]
		if ri != rj {
			return ri < rj
		}
		return kept[i].Name < kept[j].Name
	})
	return &Taxonomy{tags: kept}
}

// Len returns the number of candidate tags.
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.tags)
}

// ByCategory groups candidate tag names by category.
func (t *Taxonomy) ByCategory() map[domain.TagCategory][]string {
	out := make(map[domain.TagCategory][]string)
	if t == nil {
		return out
	}
	for _, tag := range t.tags {
		out[tag.Category] = append(out[tag.Category], tag.Name)
	}
	return out
}

// ClassifyEmbedding returns every candidate whose similarity to vec is at
// least threshold. It has no side effects and depends only on its inputs.
func ClassifyEmbedding(vec []float32, taxonomy *Taxonomy, threshold float64) []domain.Tag {
	matched := []domain.Tag{}
	if len(vec) == 0 || taxonomy == nil {
		return matched
	}
	for _, tag := range taxonomy.tags {
		if index.CosineSimilarity(vec, tag.Embedding) >= threshold-similarityEpsilon {
			matched = append(matched, tag)
		}
	}
	return matched
}

type taxonomySource interface {
	ListWithEmbeddings(ctx context.Context) ([]domain.Tag, error)
}

// TagClassifier assigns taxonomy tags to free text by embedding similarity.
//
// The taxonomy is cached for the refresh interval so tags embedded by another
// process show up without a restart. An empty taxonomy is never cached.
type TagClassifier struct {
	tags      taxonomySource
	embedder  EmbeddingProvider
	threshold float64
	refresh   time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	taxonomy *Taxonomy
	loadedAt time.Time
}

// NewTagClassifier creates a classifier. threshold is used as given when it
// lies in [0,1]; anything else falls back to the default.
func NewTagClassifier(tags taxonomySource, embedder EmbeddingProvider, threshold float64) *TagClassifier {
	if threshold < 0 || threshold > 1 {
		threshold = DefaultTagSimilarityThreshold
	}
	return &TagClassifier{
		tags:      tags,
		embedder:  embedder,
		threshold: threshold,
		refresh:   DefaultTaxonomyRefresh,
		now:       time.Now,
	}
}

// SetRefreshInterval changes how long a loaded taxonomy is reused.
// Non-positive values keep the default.
func (c *TagClassifier) SetRefreshInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultTaxonomyRefresh
	}
	c.mu.Lock()
	c.refresh = d
	c.mu.Unlock()
}

// Threshold returns the similarity cut-off in use.
func (c *TagClassifier) Threshold() float64 {
	return c.threshold
}

// LoadTaxonomy reloads candidate tags from the tag store.
func (c *TagClassifier) LoadTaxonomy(ctx context.Context) (*Taxonomy, error) {
	tags, err := c.tags.ListWithEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	taxonomy := NewTaxonomy(tags)

	c.mu.Lock()
	c.taxonomy = taxonomy
	c.loadedAt = c.now()
	c.mu.Unlock()

	logger.CtxInfo(ctx, "Loaded tag taxonomy: tags=%d", taxonomy.Len())
	return taxonomy, nil
}

// Taxonomy returns the cached taxonomy, reloading it when it is empty or
// older than the refresh interval.
func (c *TagClassifier) Taxonomy(ctx context.Context) (*Taxonomy, error) {
	c.mu.RLock()
	taxonomy, fresh := c.taxonomy, c.now().Sub(c.loadedAt) < c.refresh
	c.mu.RUnlock()
	if taxonomy.Len() > 0 && fresh {
		return taxonomy, nil
	}
	return c.LoadTaxonomy(ctx)
}

// Classify embeds text once and returns the matching tags.
func (c *TagClassifier) Classify(ctx context.Context, text string) ([]domain.Tag, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text for classification: %w", err)
	}
	return c.ClassifyVector(ctx, vec)
}

// ClassifyVector classifies an already computed embedding.
func (c *TagClassifier) ClassifyVector(ctx context.Context, vec []float32) ([]domain.Tag, error) {
	taxonomy, err := c.Taxonomy(ctx)
	if err != nil {
		return nil, err
	}
	return ClassifyEmbedding(vec, taxonomy, c.threshold), nil
}
