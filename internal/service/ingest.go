package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/repository"
	"github.com/timmy/hearth/internal/source"
	"github.com/timmy/hearth/internal/source/manifest"
	"github.com/timmy/hearth/internal/storage"
)

// IngestService runs batch jobs over the corpus on a bounded worker pool.
type IngestService struct {
	documents *DocumentService
	docRepo   *repository.DocumentRepository
	tags      *TagService
	jobs      *repository.JobRepository
	storage   storage.ObjectStorage
	pool      *ants.Pool
	batchSize int
}

// IngestConfig holds configuration for the ingest service.
type IngestConfig struct {
	Workers   int
	BatchSize int
}

// NewIngestService creates an ingest service and its worker pool.
// objectStorage may be nil when exports and remote manifests are not used.
func NewIngestService(
	documents *DocumentService,
	docRepo *repository.DocumentRepository,
	tags *TagService,
	jobs *repository.JobRepository,
	objectStorage storage.ObjectStorage,
	cfg *IngestConfig,
) (*IngestService, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 50
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &IngestService{
		documents: documents,
		docRepo:   docRepo,
		tags:      tags,
		jobs:      jobs,
		storage:   objectStorage,
		pool:      pool,
		batchSize: batchSize,
	}, nil
}

// Release stops the worker pool.
func (s *IngestService) Release() {
	s.pool.Release()
}

// IngestStats holds statistics for one job run.
type IngestStats struct {
	JobID          string    `json:"job_id"`
	TotalItems     int64     `json:"total_items"`
	ProcessedItems int64     `json:"processed_items"`
	SkippedItems   int64     `json:"skipped_items"`
	FailedItems    int64     `json:"failed_items"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}

func (st *IngestStats) record(skipped bool, err error) {
	atomic.AddInt64(&st.ProcessedItems, 1)
	switch {
	case err != nil:
		atomic.AddInt64(&st.FailedItems, 1)
	case skipped:
		atomic.AddInt64(&st.SkippedItems, 1)
	}
}

// submit runs task on the pool, counting it against stats.
func (s *IngestService) submit(ctx context.Context, wg *sync.WaitGroup, stats *IngestStats, task func() (skipped bool, err error)) {
	wg.Add(1)
	err := s.pool.Submit(func() {
		defer wg.Done()
		if ctx.Err() != nil {
			stats.record(false, ctx.Err())
			return
		}
		skipped, err := task()
		if err != nil {
			logger.CtxWarn(ctx, "Ingest task failed: %v", err)
		}
		stats.record(skipped, err)
	})
	if err != nil {
		wg.Done()
		stats.record(false, err)
	}
}

// runJob wraps fn with an ingest job record and summary logging.
func (s *IngestService) runJob(ctx context.Context, kind domain.JobKind, sourceID string, fn func(ctx context.Context, stats *IngestStats) error) (*IngestStats, error) {
	now := time.Now()
	job := &domain.IngestJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		SourceID:  sourceID,
		Status:    domain.JobStatusRunning,
		StartedAt: &now,
	}
	ctx = logger.SetJobID(ctx, job.ID)
	if s.jobs != nil {
		if err := s.jobs.Create(ctx, job); err != nil {
			logger.CtxWarn(ctx, "Failed to record ingest job: %v", err)
		}
	}

	stats := &IngestStats{JobID: job.ID, StartTime: now}
	runErr := fn(ctx, stats)
	stats.EndTime = time.Now()

	job.TotalItems = int(stats.TotalItems)
	job.ProcessedItems = int(stats.ProcessedItems)
	job.SkippedItems = int(stats.SkippedItems)
	job.FailedItems = int(stats.FailedItems)
	job.CompletedAt = &stats.EndTime
	job.Status = domain.JobStatusCompleted
	if runErr != nil {
		job.Status = domain.JobStatusFailed
		job.ErrorLog = runErr.Error()
	}
	if s.jobs != nil {
		if err := s.jobs.Update(ctx, job); err != nil {
			logger.CtxWarn(ctx, "Failed to update ingest job: %v", err)
		}
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
		logger.FieldCount:      stats.ProcessedItems,
		logger.FieldStatus:     string(job.Status),
	}).Info(ctx, "Ingest job finished: kind=%s, total=%d, skipped=%d, failed=%d",
		kind, stats.TotalItems, stats.SkippedItems, stats.FailedItems)
	return stats, runErr
}

// IngestFromSource creates documents for up to limit items of src.
// Items whose title already exists are counted as skipped.
func (s *IngestService) IngestFromSource(ctx context.Context, src source.Source, limit int) (*IngestStats, error) {
	return s.runJob(ctx, domain.JobKindDocuments, src.GetSourceID(), func(ctx context.Context, stats *IngestStats) error {
		ctx = logger.SetSource(ctx, src.GetSourceID())
		logger.CtxInfo(ctx, "Starting ingestion: source=%s, limit=%d", src.GetDisplayName(), limit)

		var wg sync.WaitGroup
		defer wg.Wait()

		cursor := ""
		fetched := 0
		for ctx.Err() == nil {
			batchLimit := s.batchSize
			if limit > 0 {
				remaining := limit - fetched
				if remaining <= 0 {
					break
				}
				if batchLimit > remaining {
					batchLimit = remaining
				}
			}

			items, next, err := src.FetchBatch(ctx, cursor, batchLimit)
			if err != nil {
				return fmt.Errorf("failed to fetch batch: %w", err)
			}
			if len(items) == 0 {
				break
			}
			atomic.AddInt64(&stats.TotalItems, int64(len(items)))
			fetched += len(items)

			for _, item := range items {
				item := item
				s.submit(ctx, &wg, stats, func() (bool, error) {
					_, created, err := s.documents.Create(ctx, documentInputOf(item))
					if err != nil {
						return false, fmt.Errorf("item %s: %w", item.SourceID, err)
					}
					return !created, nil
				})
			}

			if next == "" {
				break
			}
			cursor = next
		}
		return ctx.Err()
	})
}

func documentInputOf(item source.DocumentItem) DocumentInput {
	in := DocumentInput{
		Title:         item.Title,
		Summary:       item.Summary,
		SourceURL:     item.SourceURL,
		YearPublished: item.YearPublished,
		Tags:          item.Tags,
	}
	if rt := domain.ResourceType(strings.ToUpper(strings.TrimSpace(item.ResourceType))); rt.Valid() {
		in.ResourceType = &rt
	}
	return in
}

// RegenerateEmbeddings embeds documents that were stored without an embedding.
// A limit of zero processes all of them.
func (s *IngestService) RegenerateEmbeddings(ctx context.Context, limit int) (*IngestStats, error) {
	return s.runJob(ctx, domain.JobKindEmbeddings, "", func(ctx context.Context, stats *IngestStats) error {
		var wg sync.WaitGroup
		defer wg.Wait()

		var afterID uint
		for ctx.Err() == nil {
			batch := s.batchSize
			if limit > 0 {
				remaining := limit - int(stats.TotalItems)
				if remaining <= 0 {
					break
				}
				if batch > remaining {
					batch = remaining
				}
			}
			docs, err := s.docRepo.ListMissingEmbedding(ctx, afterID, batch)
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			if len(docs) == 0 {
				break
			}
			atomic.AddInt64(&stats.TotalItems, int64(len(docs)))
			afterID = docs[len(docs)-1].ID

			for i := range docs {
				doc := docs[i]
				s.submit(ctx, &wg, stats, func() (bool, error) {
					return false, s.documents.Reembed(ctx, &doc)
				})
			}
		}
		return ctx.Err()
	})
}

// EmbedTags seeds the taxonomy (when tf is non-nil) and embeds every tag
// that has no embedding yet, then reloads the classifier.
func (s *IngestService) EmbedTags(ctx context.Context, tf *TaxonomyFile) (*IngestStats, error) {
	return s.runJob(ctx, domain.JobKindTags, "", func(ctx context.Context, stats *IngestStats) error {
		if tf != nil {
			if _, err := s.tags.SeedTaxonomy(ctx, tf); err != nil {
				return err
			}
		}
		missing, err := s.tags.MissingEmbeddings(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tags: %w", err)
		}
		stats.TotalItems = int64(len(missing))

		var wg sync.WaitGroup
		for i := range missing {
			tag := missing[i]
			s.submit(ctx, &wg, stats, func() (bool, error) {
				return false, s.tags.EmbedTag(ctx, &tag)
			})
		}
		wg.Wait()

		if _, err := s.tags.ReloadTaxonomy(ctx); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// ExportCorpus writes every document as a JSON Lines manifest to object storage
// under key. The output can be re-ingested with the manifest source.
func (s *IngestService) ExportCorpus(ctx context.Context, key string) (*IngestStats, error) {
	if s.storage == nil {
		return nil, errors.New("object storage is not configured")
	}
	return s.runJob(ctx, domain.JobKindExport, key, func(ctx context.Context, stats *IngestStats) error {
		var buf bytes.Buffer
		var afterID uint
		for {
			docs, err := s.docRepo.ListAfter(ctx, afterID, s.batchSize)
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}
			if len(docs) == 0 {
				break
			}
			items := make([]manifest.Item, 0, len(docs))
			for _, d := range docs {
				item := manifest.Item{
					ID:            fmt.Sprintf("%d", d.ID),
					Title:         d.Title,
					Summary:       d.Summary,
					SourceURL:     d.SourceURL,
					YearPublished: d.YearPublished,
					Tags:          d.TagNames(),
				}
				if d.ResourceType != nil {
					item.ResourceType = string(*d.ResourceType)
				}
				items = append(items, item)
			}
			if err := manifest.Encode(&buf, items); err != nil {
				return fmt.Errorf("failed to encode documents: %w", err)
			}
			stats.TotalItems += int64(len(docs))
			stats.ProcessedItems += int64(len(docs))
			afterID = docs[len(docs)-1].ID
		}

		if err := s.storage.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/x-ndjson"); err != nil {
			return fmt.Errorf("failed to upload export: %w", err)
		}
		logger.CtxInfo(ctx, "Corpus exported: url=%s", s.storage.GetURL(key))
		return nil
	})
}
