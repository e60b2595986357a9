package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/hearth/internal/domain"
	"gorm.io/gorm"
)

// TagRepository stores the tag taxonomy.
type TagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// GetByName retrieves a tag by its unique name.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*domain.Tag, error) {
	var tag domain.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).Take(&tag).Error; err != nil {
		return nil, notFound(err)
	}
	return &tag, nil
}

// Create inserts a tag. When another writer already holds the name the insert
// is rolled back and the surviving row is returned instead of an error.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - tag: tag to insert; its ID is populated on success.
// Returns:
//   - *domain.Tag: the stored tag, which may be the pre-existing row.
//   - error: non-nil on storage failure.
func (r *TagRepository) Create(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	if tag.Category == "" {
		tag.Category = domain.TagCategoryUnknown
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(tag).Error
	})
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to create tag %q: %w", tag.Name, err)
	}
	existing, getErr := r.GetByName(ctx, tag.Name)
	if getErr != nil {
		return nil, fmt.Errorf("refetch tag %q after %w: %v", tag.Name, domain.ErrPersistenceConflict, getErr)
	}
	return existing, nil
}

// GetOrCreate returns the tag named name, creating it with category when absent.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string, category domain.TagCategory) (*domain.Tag, error) {
	tag, err := r.GetByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return r.Create(ctx, &domain.Tag{Name: name, Category: category})
}

// List returns tags ordered by category then name. A nil category lists all.
func (r *TagRepository) List(ctx context.Context, category *domain.TagCategory) ([]domain.Tag, error) {
	q := r.db.WithContext(ctx).Order("category").Order("name")
	if category != nil {
		q = q.Where("category = ?", *category)
	}
	var tags []domain.Tag
	if err := q.Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// ListWithEmbeddings returns every tag that has an embedding, ordered by category then name.
func (r *TagRepository) ListWithEmbeddings(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	err := r.db.WithContext(ctx).Where("embedding IS NOT NULL").Order("category").Order("name").Find(&tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ListMissingEmbedding returns tags that still need an embedding.
func (r *TagRepository) ListMissingEmbedding(ctx context.Context) ([]domain.Tag, error) {
	var tags []domain.Tag
	if err := r.db.WithContext(ctx).Where("embedding IS NULL").Order("id").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// SetEmbedding stores the embedding for a tag.
func (r *TagRepository) SetEmbedding(ctx context.Context, id uint, vec domain.Vector) error {
	return r.db.WithContext(ctx).Model(&domain.Tag{}).Where("id = ?", id).Update("embedding", vec).Error
}
