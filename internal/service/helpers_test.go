package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/timmy/hearth/internal/config"
	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/repository"
)

// fakeEmbedder returns fixed vectors per text, a fallback otherwise, and
// fails for texts listed in fail.
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	fail     map[string]bool
	failAll  bool
	calls    int
}

func newFakeEmbedder(fallback []float32) *fakeEmbedder {
	return &fakeEmbedder{
		vectors:  map[string][]float32{},
		fallback: fallback,
		fail:     map[string]bool{},
	}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll || f.fail[text] {
		return nil, fmt.Errorf("fake provider down: %w", domain.ErrEmbeddingFailure)
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.fallback == nil {
		return nil, fmt.Errorf("no vector for %q: %w", text, domain.ErrEmbeddingFailure)
	}
	return f.fallback, nil
}

func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Model() string   { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int { return len(f.fallback) }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeProvider returns canned content or an error.
type fakeProvider struct {
	mu      sync.Mutex
	content string
	err     error
	queries []ExternalQuery
}

func (p *fakeProvider) Search(_ context.Context, q ExternalQuery) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	return p.content, p.err
}

type staticWhitelist struct {
	domains []string
	err     error
}

func (w staticWhitelist) ListDomains(context.Context) ([]string, error) {
	return w.domains, w.err
}

type staticTags []domain.Tag

func (s staticTags) ListWithEmbeddings(context.Context) ([]domain.Tag, error) {
	return s, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "service.db"),
		MaxOpenConns: 1,
		AutoMigrate:  true,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type testStores struct {
	db        *gorm.DB
	docs      *repository.DocumentRepository
	tags      *repository.TagRepository
	whitelist *repository.WhitelistRepository
	jobs      *repository.JobRepository
}

func newTestStores(t *testing.T) *testStores {
	db := newTestDB(t)
	return &testStores{
		db:        db,
		docs:      repository.NewDocumentRepository(db),
		tags:      repository.NewTagRepository(db),
		whitelist: repository.NewWhitelistRepository(db),
		jobs:      repository.NewJobRepository(db),
	}
}
