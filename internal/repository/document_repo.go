package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/timmy/hearth/internal/domain"
	"gorm.io/gorm"
)

// DocumentRepository is the authoritative document store.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DocumentRepository: repository instance bound to db.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// Create inserts a document and its tag associations in one transaction.
// Creation is idempotent on title: when a document with the same title exists
// (found up front or detected as a unique violation), that row is returned with
// created=false and nothing is written.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - doc: document to insert; its ID is populated on success.
//   - tagIDs: tags to associate.
// Returns:
//   - *domain.Document: the stored document (new or pre-existing).
//   - bool: true when a new row was inserted.
//   - error: non-nil on storage failure.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document, tagIDs []uint) (*domain.Document, bool, error) {
	var existing *domain.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found domain.Document
		err := tx.Where("title = ?", doc.Title).Take(&found).Error
		if err == nil {
			existing = &found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(doc).Error; err != nil {
			return err
		}
		return insertDocumentTags(tx, doc.ID, tagIDs)
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with a concurrent writer; reuse their row.
		found, getErr := r.GetByTitle(ctx, doc.Title)
		if getErr != nil {
			return nil, false, fmt.Errorf("refetch after %w: %v", domain.ErrPersistenceConflict, getErr)
		}
		return found, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create document: %w", err)
	}
	if existing != nil {
		if err := r.attachTags(ctx, []*domain.Document{existing}); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if err := r.attachTags(ctx, []*domain.Document{doc}); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func insertDocumentTags(tx *gorm.DB, documentID uint, tagIDs []uint) error {
	if len(tagIDs) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(tagIDs))
	rows := make([]domain.DocumentTag, 0, len(tagIDs))
	for _, id := range tagIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, domain.DocumentTag{DocumentID: documentID, TagID: id})
	}
	return tx.Create(&rows).Error
}

// Update saves changed document fields. When tagIDs is non-nil the tag set is
// replaced; a nil slice leaves associations untouched.
func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document, tagIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Document{}).Where("id = ?", doc.ID).Updates(map[string]interface{}{
			"title":          doc.Title,
			"summary":        doc.Summary,
			"source_url":     doc.SourceURL,
			"year_published": doc.YearPublished,
			"resource_type":  doc.ResourceType,
			"embedding":      doc.Embedding,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		if tagIDs == nil {
			return nil
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&domain.DocumentTag{}).Error; err != nil {
			return err
		}
		return insertDocumentTags(tx, doc.ID, tagIDs)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("title %q already in use: %w", doc.Title, domain.ErrPersistenceConflict)
	}
	return err
}

// SetEmbedding stores a freshly computed embedding for a document.
func (r *DocumentRepository) SetEmbedding(ctx context.Context, id uint, vec domain.Vector) error {
	return r.db.WithContext(ctx).Model(&domain.Document{}).Where("id = ?", id).Update("embedding", vec).Error
}

// GetByID retrieves a document with its tags.
func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.attachTags(ctx, []*domain.Document{&doc}); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetByIDs retrieves documents with tags keyed by ID. Missing IDs are absent from the map.
func (r *DocumentRepository) GetByIDs(ctx context.Context, ids []uint) (map[uint]*domain.Document, error) {
	out := make(map[uint]*domain.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var docs []domain.Document
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, err
	}
	ptrs := make([]*domain.Document, len(docs))
	for i := range docs {
		ptrs[i] = &docs[i]
		out[docs[i].ID] = &docs[i]
	}
	if err := r.attachTags(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByTitle retrieves a document by its unique title.
func (r *DocumentRepository) GetByTitle(ctx context.Context, title string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).Where("title = ?", title).Take(&doc).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.attachTags(ctx, []*domain.Document{&doc}); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetBySourceURL retrieves the oldest document with the given source URL.
func (r *DocumentRepository) GetBySourceURL(ctx context.Context, url string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).Where("source_url = ?", url).Order("id").Take(&doc).Error; err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// ExistsBySourceURL checks whether any document points at url.
func (r *DocumentRepository) ExistsBySourceURL(ctx context.Context, url string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Document{}).Where("source_url = ?", url).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListEmbedded returns id and embedding for every document with a non-null embedding.
func (r *DocumentRepository) ListEmbedded(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Select("id", "embedding").
		Where("embedding IS NOT NULL").
		Order("id").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ListMissingEmbedding returns up to limit documents whose embedding is still null.
func (r *DocumentRepository) ListMissingEmbedding(ctx context.Context, afterID uint, limit int) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Where("embedding IS NULL AND id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	ptrs := make([]*domain.Document, len(docs))
	for i := range docs {
		ptrs[i] = &docs[i]
	}
	if err := r.attachTags(ctx, ptrs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListAfter pages through all documents by ascending ID.
func (r *DocumentRepository) ListAfter(ctx context.Context, afterID uint, limit int) ([]domain.Document, error) {
	var docs []domain.Document
	if err := r.db.WithContext(ctx).Where("id > ?", afterID).Order("id").Limit(limit).Find(&docs).Error; err != nil {
		return nil, err
	}
	ptrs := make([]*domain.Document, len(docs))
	for i := range docs {
		ptrs[i] = &docs[i]
	}
	if err := r.attachTags(ctx, ptrs); err != nil {
		return nil, err
	}
	return docs, nil
}

var sortColumns = map[string]string{
	"title":          "title",
	"year_published": "year_published",
	"created_at":     "created_at",
	"id":             "id",
}

func (r *DocumentRepository) filtered(ctx context.Context, f *domain.DocumentFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&domain.Document{})
	if f == nil {
		return q
	}
	tagged := "id IN (SELECT dt.document_id FROM document_tags dt JOIN tags t ON t.id = dt.tag_id WHERE LOWER(t.name) = ? AND t.category = ?)"
	if f.Region != "" {
		q = q.Where(tagged, strings.ToLower(f.Region), domain.TagCategoryRegion)
	}
	if f.Topic != "" {
		q = q.Where(tagged, strings.ToLower(f.Topic), domain.TagCategoryTopic)
	}
	if f.Year != nil {
		q = q.Where("year_published = ?", *f.Year)
	}
	if f.ResourceType != nil {
		q = q.Where("resource_type = ?", *f.ResourceType)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(summary) LIKE ?", like, like)
	}
	return q
}

// List returns a page of documents matching the filter plus the total match count.
func (r *DocumentRepository) List(ctx context.Context, f *domain.DocumentFilter) ([]domain.Document, int64, error) {
	var total int64
	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.filtered(ctx, f)
	col := "id"
	dir := "ASC"
	skip, limit := 0, 100
	if f != nil {
		if c, ok := sortColumns[f.SortBy]; ok {
			col = c
		}
		if strings.EqualFold(f.Order, "desc") {
			dir = "DESC"
		}
		if f.Skip > 0 {
			skip = f.Skip
		}
		if f.Limit > 0 {
			limit = f.Limit
		}
	}
	var docs []domain.Document
	if err := q.Order(col + " " + dir).Order("id").Offset(skip).Limit(limit).Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	ptrs := make([]*domain.Document, len(docs))
	for i := range docs {
		ptrs[i] = &docs[i]
	}
	if err := r.attachTags(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// ListByTagCategory returns documents carrying at least one tag of category.
func (r *DocumentRepository) ListByTagCategory(ctx context.Context, category domain.TagCategory, skip, limit int) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Where("id IN (SELECT dt.document_id FROM document_tags dt JOIN tags t ON t.id = dt.tag_id WHERE t.category = ?)", category).
		Order("id").
		Offset(skip).
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	ptrs := make([]*domain.Document, len(docs))
	for i := range docs {
		ptrs[i] = &docs[i]
	}
	if err := r.attachTags(ctx, ptrs); err != nil {
		return nil, err
	}
	return docs, nil
}

// YearRange returns the min and max publication year, nil when no document has a year.
func (r *DocumentRepository) YearRange(ctx context.Context) (*domain.YearRange, error) {
	var row struct {
		MinYear *int
		MaxYear *int
	}
	err := r.db.WithContext(ctx).Model(&domain.Document{}).
		Select("MIN(year_published) AS min_year, MAX(year_published) AS max_year").
		Where("year_published IS NOT NULL").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &domain.YearRange{MinYear: row.MinYear, MaxYear: row.MaxYear}, nil
}

// Count returns the number of stored documents.
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Document{}).Count(&count).Error
	return count, err
}

// attachTags loads tags for docs through the association table, ordered by tag name.
func (r *DocumentRepository) attachTags(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]uint, len(docs))
	byID := make(map[uint]*domain.Document, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		byID[d.ID] = d
		d.Tags = []domain.Tag{}
	}

	var rows []struct {
		DocumentID uint
		ID         uint
		Name       string
		Category   domain.TagCategory
	}
	err := r.db.WithContext(ctx).
		Table("document_tags AS dt").
		Select("dt.document_id, t.id, t.name, t.category").
		Joins("JOIN tags t ON t.id = dt.tag_id").
		Where("dt.document_id IN ?", ids).
		Order("t.name").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load document tags: %w", err)
	}
	for _, row := range rows {
		if d, ok := byID[row.DocumentID]; ok {
			d.Tags = append(d.Tags, domain.Tag{ID: row.ID, Name: row.Name, Category: row.Category})
		}
	}
	return nil
}
