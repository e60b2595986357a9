package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/repository"
)

// DocumentInput carries the writable fields of a document.
type DocumentInput struct {
	Title         string               `json:"title"`
	Summary       string               `json:"summary"`
	SourceURL     string               `json:"source_url"`
	YearPublished *int                 `json:"year_published,omitempty"`
	ResourceType  *domain.ResourceType `json:"resource_type,omitempty"`
	// Tags are tag names; unknown names are created with a guessed category.
	Tags []string `json:"tags"`
}

func (in *DocumentInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required: %w", domain.ErrInvalidInput)
	}
	if in.ResourceType != nil && !in.ResourceType.Valid() {
		return fmt.Errorf("unknown resource type %q: %w", *in.ResourceType, domain.ErrInvalidInput)
	}
	if in.YearPublished != nil && (*in.YearPublished < 1800 || *in.YearPublished > 2100) {
		return fmt.Errorf("year_published %d out of range: %w", *in.YearPublished, domain.ErrInvalidInput)
	}
	return nil
}

// DocumentService owns document writes: tag resolution, embedding and persistence.
type DocumentService struct {
	docs     *repository.DocumentRepository
	tags     *repository.TagRepository
	embedder EmbeddingProvider
}

// NewDocumentService creates a document service.
func NewDocumentService(docs *repository.DocumentRepository, tags *repository.TagRepository, embedder EmbeddingProvider) *DocumentService {
	return &DocumentService{docs: docs, tags: tags, embedder: embedder}
}

// Create stores a new document, embedding it on a best-effort basis.
// An embedding failure is logged and the document is saved without one.
// Returns the stored document and whether it was newly inserted; an existing
// title yields the existing row and false.
func (s *DocumentService) Create(ctx context.Context, in DocumentInput) (*domain.Document, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}
	if existing, err := s.docs.GetByTitle(ctx, strings.TrimSpace(in.Title)); err == nil {
		return existing, false, nil
	}

	tags, err := s.resolveTags(ctx, in.Tags)
	if err != nil {
		return nil, false, err
	}
	doc := &domain.Document{
		Title:         strings.TrimSpace(in.Title),
		Summary:       strings.TrimSpace(in.Summary),
		SourceURL:     strings.TrimSpace(in.SourceURL),
		YearPublished: in.YearPublished,
		ResourceType:  in.ResourceType,
	}
	doc.Embedding = s.embedDocument(ctx, doc, tags)
	stored, created, err := s.docs.Create(ctx, doc, tagIDs(tags))
	if err == nil && created {
		logger.With(logger.Fields{logger.FieldDocumentID: stored.ID}).
			Info(ctx, "Document created: tags=%d, embedded=%v", len(tags), len(stored.Embedding) > 0)
	}
	return stored, created, err
}

// CreateWithEmbedding stores a document whose tags and embedding were already computed.
func (s *DocumentService) CreateWithEmbedding(ctx context.Context, doc *domain.Document, tags []domain.Tag, vec []float32) (*domain.Document, bool, error) {
	doc.Embedding = domain.Vector(vec)
	return s.docs.Create(ctx, doc, tagIDs(tags))
}

// ExistsBySourceURL reports whether any document already points at url.
func (s *DocumentService) ExistsBySourceURL(ctx context.Context, url string) (bool, error) {
	return s.docs.ExistsBySourceURL(ctx, url)
}

// Update replaces the document's fields and re-embeds it. When in.Tags is nil
// the current tags are kept.
func (s *DocumentService) Update(ctx context.Context, id uint, in DocumentInput) (*domain.Document, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tags := doc.Tags
	var ids []uint
	if in.Tags != nil {
		if tags, err = s.resolveTags(ctx, in.Tags); err != nil {
			return nil, err
		}
		ids = tagIDs(tags)
		if ids == nil {
			ids = []uint{}
		}
	}

	doc.Title = strings.TrimSpace(in.Title)
	doc.Summary = strings.TrimSpace(in.Summary)
	doc.SourceURL = strings.TrimSpace(in.SourceURL)
	doc.YearPublished = in.YearPublished
	doc.ResourceType = in.ResourceType
	doc.Embedding = s.embedDocument(ctx, doc, tags)

	if err := s.docs.Update(ctx, doc, ids); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, id)
}

// Get returns a document with its tags.
func (s *DocumentService) Get(ctx context.Context, id uint) (*domain.Document, error) {
	return s.docs.GetByID(ctx, id)
}

// List returns a filtered page of documents and the total match count.
func (s *DocumentService) List(ctx context.Context, filter *domain.DocumentFilter) ([]domain.Document, int64, error) {
	return s.docs.List(ctx, filter)
}

// YearRange returns the publication year bounds of the corpus.
func (s *DocumentService) YearRange(ctx context.Context) (*domain.YearRange, error) {
	return s.docs.YearRange(ctx)
}

// ByFramework lists documents tagged with any tag of the named category.
func (s *DocumentService) ByFramework(ctx context.Context, framework string, skip, limit int) ([]domain.Document, error) {
	category := domain.ParseTagCategory(framework)
	if category == domain.TagCategoryUnknown && !strings.EqualFold(strings.TrimSpace(framework), string(domain.TagCategoryUnknown)) {
		return nil, fmt.Errorf("unknown framework %q: %w", framework, domain.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 100
	}
	return s.docs.ListByTagCategory(ctx, category, skip, limit)
}

// Reembed recomputes a stored document's embedding from its current fields.
func (s *DocumentService) Reembed(ctx context.Context, doc *domain.Document) error {
	text := buildDocumentEmbeddingText(doc.Title, doc.Summary, doc.YearPublished, doc.TagNames())
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}
	return s.docs.SetEmbedding(ctx, doc.ID, domain.Vector(vec))
}

func (s *DocumentService) embedDocument(ctx context.Context, doc *domain.Document, tags []domain.Tag) domain.Vector {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	text := buildDocumentEmbeddingText(doc.Title, doc.Summary, doc.YearPublished, names)
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logger.CtxWarn(ctx, "Embedding failed, storing document without one: title=%q, error=%v", doc.Title, err)
		return nil
	}
	return domain.Vector(vec)
}

func (s *DocumentService) resolveTags(ctx context.Context, names []string) ([]domain.Tag, error) {
	names = dedupeStrings(names)
	tags := make([]domain.Tag, 0, len(names))
	for _, name := range names {
		tag, err := s.tags.GetOrCreate(ctx, name, GuessTagCategory(name))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		tags = append(tags, *tag)
	}
	return tags, nil
}

func tagIDs(tags []domain.Tag) []uint {
	if len(tags) == 0 {
		return nil
	}
	ids := make([]uint, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	return ids
}
