package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/metrics"
)

type whitelistSource interface {
	ListDomains(ctx context.Context) ([]string, error)
}

type autosaveStore interface {
	ExistsBySourceURL(ctx context.Context, url string) (bool, error)
	CreateWithEmbedding(ctx context.Context, doc *domain.Document, tags []domain.Tag, vec []float32) (*domain.Document, bool, error)
}

// ExternalSearchConfig holds the external branch policy.
type ExternalSearchConfig struct {
	Timeout          time.Duration
	Autosave         bool
	MinimumRelevance float64
}

// ExternalSearchService queries the external provider within the whitelist,
// scores and tags the results, and persists qualifying ones.
type ExternalSearchService struct {
	provider   ExternalSearchProvider
	whitelist  whitelistSource
	classifier *TagClassifier
	embedder   EmbeddingProvider
	store      autosaveStore
	cfg        ExternalSearchConfig

	// autosaveMu makes the exists-then-create autosave step atomic in-process.
	autosaveMu sync.Mutex
}

// NewExternalSearchService creates an external search service.
func NewExternalSearchService(
	provider ExternalSearchProvider,
	whitelist whitelistSource,
	classifier *TagClassifier,
	embedder EmbeddingProvider,
	store autosaveStore,
	cfg ExternalSearchConfig,
) *ExternalSearchService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExternalTimeout
	}
	return &ExternalSearchService{
		provider:   provider,
		whitelist:  whitelist,
		classifier: classifier,
		embedder:   embedder,
		store:      store,
		cfg:        cfg,
	}
}

// Search returns up to k external results. It never fails outright: whitelist,
// provider and parse failures produce an empty list, and the cause is returned
// alongside so callers can tell "degraded" from "no matches".
func (s *ExternalSearchService) Search(ctx context.Context, query string, k int) ([]domain.ExternalSearchResult, error) {
	results := []domain.ExternalSearchResult{}
	if k <= 0 {
		return results, nil
	}

	domains, err := s.whitelist.ListDomains(ctx)
	if err != nil {
		logger.CtxError(ctx, "Failed to load whitelist: %v", err)
		return results, fmt.Errorf("failed to load whitelist: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	content, err := s.provider.Search(callCtx, ExternalQuery{Query: query, Domains: domains})
	cancel()
	if err != nil {
		logger.CtxError(ctx, "External search provider failed: %v", err)
		return results, err
	}

	items, err := ParseExternalItems(content)
	if err != nil {
		metrics.ExternalRequestsTotal.WithLabelValues("parse_error").Inc()
		logger.CtxError(ctx, "Failed to parse external search response: %v", err)
		return results, err
	}
	if len(items) > k {
		items = items[:k]
	}

	for _, item := range items {
		results = append(results, s.buildResult(ctx, item, domains))
	}

	logger.With(logger.Fields{logger.FieldCount: len(results)}).
		Info(ctx, "External search completed: parsed=%d", len(items))
	return results, nil
}

func (s *ExternalSearchService) buildResult(ctx context.Context, item ExternalItem, whitelist []string) domain.ExternalSearchResult {
	ctx = logger.WithField(ctx, logger.FieldURL, item.URL)
	result := domain.ExternalSearchResult{
		Title:          item.Title,
		Summary:        item.Summary,
		SourceURL:      item.URL,
		RelevanceScore: RelevanceScore(item.URL, whitelist),
		Tags:           []domain.TagRef{},
		Source:         domain.SourceExternal,
	}

	text := item.Summary
	if strings.TrimSpace(text) == "" {
		text = item.Title
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.CtxWarn(ctx, "Skipping tags and autosave, summary embedding failed: %v", err)
		return result
	}

	tags, err := s.classifier.ClassifyVector(ctx, vec)
	if err != nil {
		logger.CtxWarn(ctx, "Tag classification failed: %v", err)
		tags = nil
	}
	result.Tags = domain.RefsOf(tags)

	if s.cfg.Autosave && result.RelevanceScore >= s.cfg.MinimumRelevance {
		result.Autosaved = s.autosave(ctx, item, tags, vec)
	}
	return result
}

// autosave persists item unless a document already references its url.
// It reports whether the item's url is now backed by a stored document through
// this call. A title collision with a document at another url stores nothing.
func (s *ExternalSearchService) autosave(ctx context.Context, item ExternalItem, tags []domain.Tag, vec []float32) bool {
	s.autosaveMu.Lock()
	defer s.autosaveMu.Unlock()

	exists, err := s.store.ExistsBySourceURL(ctx, item.URL)
	if err != nil {
		logger.CtxWarn(ctx, "Autosave lookup failed: %v", err)
		return false
	}
	if exists {
		return false
	}

	doc, created, err := s.store.CreateWithEmbedding(ctx, &domain.Document{
		Title:     item.Title,
		Summary:   item.Summary,
		SourceURL: item.URL,
	}, tags, vec)
	if err != nil {
		logger.CtxWarn(ctx, "Autosave failed: %v", err)
		return false
	}
	entry := logger.With(logger.Fields{logger.FieldDocumentID: doc.ID})
	if !created && doc.SourceURL != item.URL {
		entry.Warn(ctx, "Autosave skipped, title already stored under another url: existing_url=%s", doc.SourceURL)
		return false
	}
	if created {
		metrics.AutosavedDocumentsTotal.Inc()
		entry.Info(ctx, "Autosaved external result")
	}
	return true
}
