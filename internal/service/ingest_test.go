package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/source/manifest"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}}
}

func (m *memoryObjects) EnsureBucket(context.Context) error { return nil }

func (m *memoryObjects) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) GetURL(key string) string { return "mem://" + key }

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

type ingestFixture struct {
	stores    *testStores
	embedder  *fakeEmbedder
	documents *DocumentService
	tags      *TagService
	objects   *memoryObjects
	ingest    *IngestService
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	stores := newTestStores(t)
	embedder := newFakeEmbedder([]float32{1, 0})
	documents := NewDocumentService(stores.docs, stores.tags, embedder)
	classifier := NewTagClassifier(stores.tags, embedder, 0.8)
	tags := NewTagService(stores.tags, embedder, classifier)
	objects := newMemoryObjects()
	ingest, err := NewIngestService(documents, stores.docs, tags, stores.jobs, objects, &IngestConfig{Workers: 2, BatchSize: 2})
	if err != nil {
		t.Fatalf("NewIngestService() error = %v", err)
	}
	t.Cleanup(ingest.Release)
	return &ingestFixture{stores: stores, embedder: embedder, documents: documents, tags: tags, objects: objects, ingest: ingest}
}

func writeManifest(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestIngestFromManifest(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	path := writeManifest(t,
		`{"id":"a","title":"Cookstove adoption","summary":"s","source_url":"https://x/a","year_published":2019,"resource_type":"research_report","tags":["Kenya"]}`,
		`{"id":"b","title":"Biomass pellets","summary":"s","source_url":"https://x/b"}`,
		`{"id":"c","title":"Cookstove adoption","summary":"s","source_url":"https://x/a","year_published":2019,"resource_type":"research_report","tags":["Kenya"]}`,
		`not json`,
		`{"id":"d","title":"LPG pricing","resource_type":"not-a-type"}`,
	)

	stats, err := f.ingest.IngestFromSource(ctx, manifest.NewFileAdapter(path), 0)
	if err != nil {
		t.Fatalf("IngestFromSource() error = %v", err)
	}
	if stats.TotalItems != 4 || stats.ProcessedItems != 4 || stats.FailedItems != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.SkippedItems != 1 {
		t.Fatalf("skipped = %d, want 1", stats.SkippedItems)
	}

	total, err := f.stores.docs.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 3 {
		t.Fatalf("documents = %d, want 3", total)
	}
	doc, err := f.stores.docs.GetByTitle(ctx, "Cookstove adoption")
	if err != nil {
		t.Fatalf("GetByTitle() error = %v", err)
	}
	if doc.ResourceType == nil || *doc.ResourceType != domain.ResourceResearchReport {
		t.Fatalf("ResourceType = %v", doc.ResourceType)
	}
	if len(doc.Tags) != 1 || doc.Tags[0].Category != domain.TagCategoryRegion {
		t.Fatalf("Tags = %v", doc.Tags)
	}

	job, err := f.stores.jobs.GetByID(ctx, stats.JobID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if job.Status != domain.JobStatusCompleted || job.Kind != domain.JobKindDocuments || job.SkippedItems != 1 {
		t.Fatalf("job = %+v", job)
	}
}

func TestIngestFromManifestRespectsLimit(t *testing.T) {
	f := newIngestFixture(t)
	path := writeManifest(t,
		`{"title":"One"}`, `{"title":"Two"}`, `{"title":"Three"}`, `{"title":"Four"}`, `{"title":"Five"}`,
	)
	stats, err := f.ingest.IngestFromSource(context.Background(), manifest.NewFileAdapter(path), 3)
	if err != nil {
		t.Fatalf("IngestFromSource() error = %v", err)
	}
	if stats.TotalItems != 3 {
		t.Fatalf("TotalItems = %d, want 3", stats.TotalItems)
	}
}

func TestRegenerateEmbeddings(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	f.embedder.failAll = true
	for _, title := range []string{"A", "B", "C"} {
		if _, _, err := f.documents.Create(ctx, DocumentInput{Title: title}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	f.embedder.failAll = false

	stats, err := f.ingest.RegenerateEmbeddings(ctx, 0)
	if err != nil {
		t.Fatalf("RegenerateEmbeddings() error = %v", err)
	}
	if stats.TotalItems != 3 || stats.FailedItems != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	missing, err := f.stores.docs.ListMissingEmbedding(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListMissingEmbedding() error = %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("documents still missing embeddings: %d", len(missing))
	}
}

func TestEmbedTagsSeedsAndReloadsTaxonomy(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.embedder.vectors["Uganda"] = []float32{1, 0}
	f.embedder.vectors["LPG"] = []float32{0, 1}

	tf := &TaxonomyFile{Categories: map[string][]string{
		"region":     {"Uganda"},
		"technology": {"LPG", "LPG"},
	}}
	stats, err := f.ingest.EmbedTags(ctx, tf)
	if err != nil {
		t.Fatalf("EmbedTags() error = %v", err)
	}
	if stats.TotalItems != 2 || stats.FailedItems != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	got, err := f.tags.Classify(ctx, "Uganda")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Uganda" || got[0].Category != domain.TagCategoryRegion {
		t.Fatalf("Classify() = %v", got)
	}
}

func TestExportCorpusRoundTrip(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	for _, in := range []DocumentInput{
		{Title: "First", SourceURL: "https://x/1", YearPublished: intPtr(2020), Tags: []string{"Kenya"}},
		{Title: "Second", Summary: "two"},
		{Title: "Third"},
	} {
		if _, _, err := f.documents.Create(ctx, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	stats, err := f.ingest.ExportCorpus(ctx, "exports/corpus.jsonl")
	if err != nil {
		t.Fatalf("ExportCorpus() error = %v", err)
	}
	if stats.TotalItems != 3 {
		t.Fatalf("TotalItems = %d, want 3", stats.TotalItems)
	}

	adapter := manifest.NewStorageAdapter(f.objects, "exports/corpus.jsonl")
	n, err := adapter.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("exported items = %d, want 3", n)
	}
	items, _, err := adapter.FetchBatch(ctx, "", 1)
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if items[0].Title != "First" || len(items[0].Tags) != 1 || items[0].Tags[0] != "Kenya" {
		t.Fatalf("first item = %+v", items[0])
	}
}

func TestExportCorpusWithoutStorage(t *testing.T) {
	f := newIngestFixture(t)
	svc, err := NewIngestService(f.documents, f.stores.docs, f.tags, nil, nil, &IngestConfig{})
	if err != nil {
		t.Fatalf("NewIngestService() error = %v", err)
	}
	defer svc.Release()
	if _, err := svc.ExportCorpus(context.Background(), "k"); err == nil {
		t.Fatal("ExportCorpus() without storage succeeded")
	}
}

func TestLoadTaxonomyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	content := "categories:\n  region:\n    - Uganda\n    - Kenya\n  product-lifecycle:\n    - Pilot\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	tf, err := LoadTaxonomyFile(path)
	if err != nil {
		t.Fatalf("LoadTaxonomyFile() error = %v", err)
	}
	if len(tf.Categories["region"]) != 2 || len(tf.Categories["product-lifecycle"]) != 1 {
		t.Fatalf("categories = %v", tf.Categories)
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	_ = os.WriteFile(empty, []byte("categories: {}\n"), 0o644)
	if _, err := LoadTaxonomyFile(empty); err == nil {
		t.Fatal("LoadTaxonomyFile() accepted an empty taxonomy")
	}
}
