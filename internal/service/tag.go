package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/repository"
)

// TaxonomyFile is the on-disk controlled vocabulary: category -> tag names.
type TaxonomyFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadTaxonomyFile parses a taxonomy yaml file.
func LoadTaxonomyFile(path string) (*TaxonomyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	var tf TaxonomyFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}
	if len(tf.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no categories", path)
	}
	return &tf, nil
}

// TagService manages the tag taxonomy and its embeddings.
type TagService struct {
	tags       *repository.TagRepository
	embedder   EmbeddingProvider
	classifier *TagClassifier
}

// NewTagService creates a tag service.
func NewTagService(tags *repository.TagRepository, embedder EmbeddingProvider, classifier *TagClassifier) *TagService {
	return &TagService{tags: tags, embedder: embedder, classifier: classifier}
}

// List returns tags, optionally limited to one category.
func (s *TagService) List(ctx context.Context, category *domain.TagCategory) ([]domain.Tag, error) {
	return s.tags.List(ctx, category)
}

// Classify returns the taxonomy tags that apply to text.
func (s *TagService) Classify(ctx context.Context, text string) ([]domain.Tag, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", domain.ErrInvalidInput)
	}
	return s.classifier.Classify(ctx, text)
}

// SeedTaxonomy creates every tag named in the taxonomy file that does not exist yet.
// Existing tags keep their category. Returns the number of tags in the file.
func (s *TagService) SeedTaxonomy(ctx context.Context, tf *TaxonomyFile) (int, error) {
	seen := 0
	for rawCategory, names := range tf.Categories {
		category := domain.ParseTagCategory(rawCategory)
		if category == domain.TagCategoryUnknown && rawCategory != string(domain.TagCategoryUnknown) {
			logger.CtxWarn(ctx, "Unknown taxonomy category %q, tags filed under unknown", rawCategory)
		}
		for _, name := range dedupeStrings(names) {
			if _, err := s.tags.GetOrCreate(ctx, name, category); err != nil {
				return seen, fmt.Errorf("failed to seed tag %q: %w", name, err)
			}
			seen++
		}
	}
	logger.With(logger.Fields{logger.FieldCount: seen}).Info(ctx, "Taxonomy seeded")
	return seen, nil
}

// MissingEmbeddings lists tags that cannot yet take part in classification.
func (s *TagService) MissingEmbeddings(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.ListMissingEmbedding(ctx)
}

// EmbedTag computes and stores the embedding for one tag's name.
func (s *TagService) EmbedTag(ctx context.Context, tag *domain.Tag) error {
	vec, err := s.embedder.Embed(ctx, tag.Name)
	if err != nil {
		return fmt.Errorf("failed to embed tag %q: %w", tag.Name, err)
	}
	if err := s.tags.SetEmbedding(ctx, tag.ID, domain.Vector(vec)); err != nil {
		return err
	}
	logger.With(logger.Fields{logger.FieldTagName: tag.Name}).Debug(ctx, "Tag embedded: category=%s", tag.Category)
	return nil
}

// ReloadTaxonomy makes newly embedded tags visible to the classifier.
func (s *TagService) ReloadTaxonomy(ctx context.Context) (*Taxonomy, error) {
	return s.classifier.LoadTaxonomy(ctx)
}
