package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/hearth/internal/domain"
)

func TestDocumentCreateIsIdempotentOnTitle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	tags := NewTagRepository(db)

	lpg, err := tags.GetOrCreate(ctx, "LPG", domain.TagCategoryTechnology)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	first, created, err := docs.Create(ctx, &domain.Document{
		Title:     "LPG adoption in Kenya",
		Summary:   "Survey of household LPG uptake.",
		SourceURL: "https://who.int/a",
		Embedding: domain.Vector{1, 0},
	}, []uint{lpg.ID, lpg.ID})
	if err != nil || !created {
		t.Fatalf("first Create() = created %v, err %v", created, err)
	}
	if len(first.Tags) != 1 || first.Tags[0].Name != "LPG" {
		t.Fatalf("tags = %+v", first.Tags)
	}

	second, created, err := docs.Create(ctx, &domain.Document{
		Title:     "LPG adoption in Kenya",
		Summary:   "A different summary",
		SourceURL: "https://example.com/other",
	}, nil)
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if created {
		t.Fatal("second Create() should not insert")
	}
	if second.ID != first.ID || second.Summary != first.Summary {
		t.Fatalf("second Create() returned %+v, want existing %+v", second, first)
	}

	count, _ := docs.Count(ctx)
	if count != 1 {
		t.Fatalf("Count() = %d, want 1", count)
	}
}

func TestDocumentLookups(t *testing.T) {
	ctx := context.Background()
	docs := NewDocumentRepository(newTestDB(t))

	d, _, err := docs.Create(ctx, &domain.Document{Title: "A", SourceURL: "https://who.int/a", Embedding: domain.Vector{1, 2}}, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _, _ = docs.Create(ctx, &domain.Document{Title: "B", SourceURL: "https://example.com/b"}, nil)

	if _, err := docs.GetBySourceURL(ctx, "https://nowhere.org"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetBySourceURL(missing) error = %v, want ErrNotFound", err)
	}
	got, err := docs.GetBySourceURL(ctx, "https://who.int/a")
	if err != nil || got.ID != d.ID {
		t.Fatalf("GetBySourceURL() = %+v, %v", got, err)
	}
	exists, err := docs.ExistsBySourceURL(ctx, "https://example.com/b")
	if err != nil || !exists {
		t.Fatalf("ExistsBySourceURL() = %v, %v", exists, err)
	}

	embedded, err := docs.ListEmbedded(ctx)
	if err != nil {
		t.Fatalf("ListEmbedded() error = %v", err)
	}
	if len(embedded) != 1 || embedded[0].ID != d.ID || len(embedded[0].Embedding) != 2 {
		t.Fatalf("ListEmbedded() = %+v", embedded)
	}

	missing, err := docs.ListMissingEmbedding(ctx, 0, 10)
	if err != nil || len(missing) != 1 || missing[0].Title != "B" {
		t.Fatalf("ListMissingEmbedding() = %+v, %v", missing, err)
	}

	if _, err := docs.GetByID(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID(missing) error = %v", err)
	}
}

func TestDocumentUpdateReplacesTags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	tags := NewTagRepository(db)

	kenya, _ := tags.GetOrCreate(ctx, "Kenya", domain.TagCategoryRegion)
	solar, _ := tags.GetOrCreate(ctx, "Solar", domain.TagCategoryTechnology)

	d, _, _ := docs.Create(ctx, &domain.Document{Title: "T"}, []uint{kenya.ID})
	d.Summary = "updated"
	d.Embedding = domain.Vector{0.5, 0.5}
	if err := docs.Update(ctx, d, []uint{solar.ID}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := docs.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Summary != "updated" || !got.HasEmbedding() {
		t.Fatalf("fields not updated: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0].Name != "Solar" {
		t.Fatalf("tags = %+v", got.Tags)
	}

	if err := docs.Update(ctx, &domain.Document{ID: 404, Title: "x"}, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v", err)
	}
}

func TestDocumentListFilters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	docs := NewDocumentRepository(db)
	tags := NewTagRepository(db)

	uganda, _ := tags.GetOrCreate(ctx, "Uganda", domain.TagCategoryRegion)
	barriers, _ := tags.GetOrCreate(ctx, "Barriers", domain.TagCategoryTopic)
	report := domain.ResourceResearchReport

	_, _, _ = docs.Create(ctx, &domain.Document{Title: "Cookstove barriers in Uganda", YearPublished: intPtr(2019), ResourceType: &report}, []uint{uganda.ID, barriers.ID})
	_, _, _ = docs.Create(ctx, &domain.Document{Title: "Electric cooking pilots", Summary: "Uganda grid study", YearPublished: intPtr(2022)}, []uint{uganda.ID})
	_, _, _ = docs.Create(ctx, &domain.Document{Title: "Biomass supply chains", YearPublished: intPtr(2015)}, nil)

	tests := []struct {
		name   string
		filter domain.DocumentFilter
		want   int64
	}{
		{"all", domain.DocumentFilter{}, 3},
		{"region", domain.DocumentFilter{Region: "uganda"}, 2},
		{"region and topic", domain.DocumentFilter{Region: "Uganda", Topic: "barriers"}, 1},
		{"year", domain.DocumentFilter{Year: intPtr(2015)}, 1},
		{"search summary", domain.DocumentFilter{Search: "GRID"}, 1},
		{"resource type", domain.DocumentFilter{ResourceType: &report}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			_, total, err := docs.List(ctx, &f)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.want {
				t.Fatalf("total = %d, want %d", total, tt.want)
			}
		})
	}

	page, total, err := docs.List(ctx, &domain.DocumentFilter{SortBy: "year_published", Order: "desc", Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 || len(page) != 2 || *page[0].YearPublished != 2022 {
		t.Fatalf("sorted page = %+v (total %d)", page, total)
	}

	yr, err := docs.YearRange(ctx)
	if err != nil {
		t.Fatalf("YearRange() error = %v", err)
	}
	if yr.MinYear == nil || *yr.MinYear != 2015 || *yr.MaxYear != 2022 {
		t.Fatalf("YearRange() = %+v", yr)
	}

	framework, err := docs.ListByTagCategory(ctx, domain.TagCategoryTopic, 0, 10)
	if err != nil || len(framework) != 1 {
		t.Fatalf("ListByTagCategory() = %d docs, err %v", len(framework), err)
	}
}

func TestYearRangeEmpty(t *testing.T) {
	yr, err := NewDocumentRepository(newTestDB(t)).YearRange(context.Background())
	if err != nil {
		t.Fatalf("YearRange() error = %v", err)
	}
	if yr.MinYear != nil || yr.MaxYear != nil {
		t.Fatalf("YearRange() = %+v, want nils", yr)
	}
}
