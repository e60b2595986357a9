// Package app builds the service graph shared by the API server and the
// ingest CLI.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/hearth/internal/api"
	"github.com/timmy/hearth/internal/api/handler"
	"github.com/timmy/hearth/internal/api/middleware"
	"github.com/timmy/hearth/internal/config"
	"github.com/timmy/hearth/internal/index"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/repository"
	"github.com/timmy/hearth/internal/service"
	"github.com/timmy/hearth/internal/storage"
)

// App owns every long-lived dependency. Build it with New and release it
// with Close.
type App struct {
	Config *config.Config

	DB        *gorm.DB
	Index     index.VectorIndex
	Embedder  service.EmbeddingProvider
	Storage   storage.ObjectStorage
	Documents *repository.DocumentRepository
	Tags      *repository.TagRepository
	Whitelist *repository.WhitelistRepository
	Jobs      *repository.JobRepository

	Classifier      *service.TagClassifier
	DocumentService *service.DocumentService
	TagService      *service.TagService
	InternalSearch  *service.InternalSearchService
	ExternalSearch  *service.ExternalSearchService
	SearchService   *service.SearchService
	IngestService   *service.IngestService

	qdrant *repository.QdrantIndex
	redis  *repository.RedisStore
}

// New connects to the configured backends and wires the services.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.DB, err = repository.InitDB(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.Documents = repository.NewDocumentRepository(a.DB)
	a.Tags = repository.NewTagRepository(a.DB)
	a.Whitelist = repository.NewWhitelistRepository(a.DB)
	a.Jobs = repository.NewJobRepository(a.DB)

	if err = a.initIndex(); err != nil {
		return nil, err
	}
	if err = a.initEmbedder(ctx); err != nil {
		return nil, err
	}

	a.Classifier = service.NewTagClassifier(a.Tags, a.Embedder, cfg.Search.TagSimilarityThreshold)
	a.Classifier.SetRefreshInterval(cfg.Taxonomy.RefreshInterval)
	a.DocumentService = service.NewDocumentService(a.Documents, a.Tags, a.Embedder)
	a.TagService = service.NewTagService(a.Tags, a.Embedder, a.Classifier)
	a.InternalSearch = service.NewInternalSearchService(a.Index, a.Documents, a.Embedder)

	if n, seedErr := a.Whitelist.Seed(ctx, cfg.External.Whitelist); seedErr != nil {
		logger.CtxWarn(ctx, "Failed to seed whitelist: %v", seedErr)
	} else if n > 0 {
		logger.CtxInfo(ctx, "Seeded whitelist: added=%d", n)
	}

	var external *service.ExternalSearchService
	if cfg.External.Enabled && cfg.External.APIKey != "" {
		provider := service.NewPerplexityProvider(&service.PerplexityConfig{
			APIKey:      cfg.External.APIKey,
			BaseURL:     cfg.External.BaseURL,
			Model:       cfg.External.Model,
			Temperature: cfg.External.Temperature,
			MaxTokens:   cfg.External.MaxTokens,
			Timeout:     cfg.External.Timeout,
		})
		external = service.NewExternalSearchService(provider, a.Whitelist, a.Classifier, a.Embedder, a.DocumentService,
			service.ExternalSearchConfig{
				Timeout:          cfg.External.Timeout,
				Autosave:         cfg.Search.AutosaveDocuments,
				MinimumRelevance: cfg.Search.MinimumRelevanceForAutosave,
			})
		a.ExternalSearch = external
	} else if cfg.External.Enabled {
		logger.CtxWarn(ctx, "External search enabled but no API key configured; external branch disabled")
	}

	searchCfg := service.SearchConfig{
		IncludeExternalByDefault: cfg.Search.IncludeExternalByDefault,
		ResultLimitDefault:       cfg.Search.ResultLimitDefault,
		ResultLimitMax:           cfg.Search.ResultLimitMax,
		BranchTimeout:            cfg.Search.BranchTimeout,
	}
	if external != nil {
		a.SearchService = service.NewSearchService(a.InternalSearch, external, searchCfg)
	} else {
		a.SearchService = service.NewSearchService(a.InternalSearch, nil, searchCfg)
	}

	if cfg.Storage.Enabled {
		if a.Storage, err = storage.NewStorage(cfg.GetStorageConfig()); err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	a.IngestService, err = service.NewIngestService(a.DocumentService, a.Documents, a.TagService, a.Jobs, a.Storage,
		&service.IngestConfig{
			Workers:   cfg.Ingest.Workers,
			BatchSize: cfg.Ingest.BatchSize,
		})
	if err != nil {
		return nil, err
	}

	logger.With(logger.Fields{
		"embedding": a.Embedder.Name() + "/" + a.Embedder.Model(),
		"index":     cfg.Index.Backend,
		"external":  a.ExternalSearch != nil,
		"cache":     a.redis != nil,
		"storage":   a.Storage != nil,
	}).Info(ctx, "Application initialized")
	return a, nil
}

func (a *App) initIndex() error {
	cfg := a.Config
	if cfg.Index.Backend != "qdrant" {
		a.Index = index.NewFlat(cfg.Embedding.Dimensions)
		return nil
	}
	q, err := repository.NewQdrantIndex(&repository.QdrantConnectionConfig{
		Host:            cfg.Qdrant.Host,
		Port:            cfg.Qdrant.Port,
		Collection:      cfg.Qdrant.Collection,
		APIKey:          cfg.Qdrant.APIKey,
		UseTLS:          cfg.Qdrant.UseTLS,
		VectorDimension: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize qdrant index: %w", err)
	}
	a.qdrant = q
	a.Index = q
	return nil
}

func (a *App) initEmbedder(ctx context.Context) error {
	cfg := a.Config
	embedder, err := service.NewEmbeddingProvider(&cfg.Embedding)
	if err != nil {
		return err
	}
	a.Embedder = embedder
	if !cfg.Cache.Enabled {
		return nil
	}

	store, err := repository.NewRedisStore(repository.RedisConfig{
		Addrs:    cfg.Cache.Addrs,
		Username: cfg.Cache.Username,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		// The cache is optional; an unreachable Redis only costs latency.
		logger.CtxWarn(ctx, "Embedding cache disabled: %v", err)
		return nil
	}
	a.redis = store
	a.Embedder = service.NewCachedEmbedder(embedder, store, cfg.Cache.TTL)
	return nil
}

// Router builds the HTTP handler tree for the API server.
func (a *App) Router() *gin.Engine {
	return api.SetupRouter(&api.Handlers{
		Health:    handler.NewHealthHandler(a.DB, a.Index),
		Search:    handler.NewSearchHandler(a.SearchService),
		Documents: handler.NewDocumentHandler(a.DocumentService),
		Tags:      handler.NewTagHandler(a.TagService),
		Whitelist: handler.NewWhitelistHandler(a.Whitelist),
		Admin:     handler.NewAdminHandler(a.InternalSearch, a.TagService, a.IngestService, a.Jobs),
	}, a.Config.Server.Mode, middleware.CORSConfig{
		AllowedOrigins:  a.Config.Server.CORS.AllowedOrigins,
		AllowAllOrigins: a.Config.Server.CORS.AllowAllOrigins,
	})
}

// Close releases every resource New acquired. It is safe on a partially
// built App.
func (a *App) Close() {
	if a.IngestService != nil {
		a.IngestService.Release()
	}
	if a.qdrant != nil {
		if err := a.qdrant.Close(); err != nil {
			logger.Warn("Failed to close qdrant connection: %v", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close database: %v", err)
			}
		}
	}
	_ = logger.Sync()
}
