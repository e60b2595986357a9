package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/index"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/metrics"
)

const (
	// filteredOverfetch widens the index query when tag filters will discard hits.
	filteredOverfetch = 5
	// rebuildTimeout bounds a shared build once it is detached from its callers.
	rebuildTimeout = 2 * time.Minute
)

type embeddedDocumentSource interface {
	ListEmbedded(ctx context.Context) ([]domain.Document, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]*domain.Document, error)
}

// SearchFilter narrows internal results to documents carrying named tags.
type SearchFilter struct {
	Region string
	Topic  string
}

func (f *SearchFilter) empty() bool {
	return f == nil || (f.Region == "" && f.Topic == "")
}

func (f *SearchFilter) matches(doc *domain.Document) bool {
	if f.empty() {
		return true
	}
	return hasTag(doc, f.Region, domain.TagCategoryRegion) && hasTag(doc, f.Topic, domain.TagCategoryTopic)
}

func hasTag(doc *domain.Document, name string, category domain.TagCategory) bool {
	if name == "" {
		return true
	}
	for _, t := range doc.Tags {
		if t.Category == category && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// InternalSearchService ranks stored documents by embedding similarity.
//
// The index is built on the first query and otherwise only on an explicit
// Rebuild, so documents written after the last build are not visible until
// the next one.
type InternalSearchService struct {
	index    index.VectorIndex
	docs     embeddedDocumentSource
	embedder EmbeddingProvider
	build    singleflight.Group
}

// NewInternalSearchService creates an internal search service.
func NewInternalSearchService(idx index.VectorIndex, docs embeddedDocumentSource, embedder EmbeddingProvider) *InternalSearchService {
	return &InternalSearchService{index: idx, docs: docs, embedder: embedder}
}

// Index exposes the underlying vector index for health reporting.
func (s *InternalSearchService) Index() index.VectorIndex {
	return s.index
}

// Rebuild replaces the index content with every embedded document.
// Concurrent callers share one rebuild. The build does not inherit any
// caller's cancellation; a caller whose ctx ends stops waiting while the
// build carries on for the others.
func (s *InternalSearchService) Rebuild(ctx context.Context) (int, error) {
	ch := s.build.DoChan("rebuild", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()
		start := time.Now()
		docs, err := s.docs.ListEmbedded(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list embedded documents: %w", err)
		}
		entries := make([]index.Entry, 0, len(docs))
		for _, d := range docs {
			entries = append(entries, index.Entry{ID: d.ID, Vector: d.Embedding})
		}
		if err := s.index.Rebuild(ctx, entries); err != nil {
			return 0, fmt.Errorf("failed to rebuild index: %w", err)
		}

		elapsed := time.Since(start)
		metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
		metrics.IndexSize.Set(float64(s.index.Len()))
		logger.With(logger.Fields{
			logger.FieldCount:      s.index.Len(),
			logger.FieldDurationMs: elapsed.Milliseconds(),
		}).Info(ctx, "Vector index rebuilt")
		return s.index.Len(), nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	}
}

// EnsureBuilt builds the index if no build has completed yet.
func (s *InternalSearchService) EnsureBuilt(ctx context.Context) error {
	if s.index.Built() {
		return nil
	}
	_, err := s.Rebuild(ctx)
	return err
}

// Search returns up to k documents nearest to query, best first.
// An empty corpus yields an empty slice, not an error.
func (s *InternalSearchService) Search(ctx context.Context, query string, k int, filter *SearchFilter) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if k <= 0 {
		return results, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if err := s.EnsureBuilt(ctx); err != nil {
		return nil, err
	}
	if s.index.Len() == 0 {
		logger.CtxDebug(ctx, "Vector index is empty")
		return results, nil
	}

	limit := k
	if !filter.empty() {
		limit = k * filteredOverfetch
	}
	hits, err := s.index.Query(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	if len(hits) == 0 {
		return results, nil
	}

	ids := make([]uint, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	docs, err := s.docs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	for _, h := range hits {
		doc, ok := docs[h.ID]
		if !ok {
			// Deleted since the last build.
			continue
		}
		if !filter.matches(doc) {
			continue
		}
		results = append(results, domain.SearchResult{
			DocumentID:     doc.ID,
			Title:          doc.Title,
			Summary:        doc.Summary,
			SourceURL:      doc.SourceURL,
			RelevanceScore: index.Relevance(h.Distance),
			Tags:           domain.RefsOf(doc.Tags),
			Source:         domain.SourceInternal,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}
