package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/repository"
	"github.com/timmy/hearth/internal/service"
)

// AdminHandler handles admin operations.
type AdminHandler struct {
	internal *service.InternalSearchService
	tags     *service.TagService
	ingest   *service.IngestService
	jobs     *repository.JobRepository

	// Regeneration job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.IngestStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - internal: internal search service owning the vector index.
//   - tags: tag service owning the classifier taxonomy.
//   - ingest: ingest service used for embedding regeneration.
//   - jobs: ingest job audit records.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(internal *service.InternalSearchService, tags *service.TagService, ingest *service.IngestService, jobs *repository.JobRepository) *AdminHandler {
	return &AdminHandler{
		internal: internal,
		tags:     tags,
		ingest:   ingest,
		jobs:     jobs,
	}
}

// RegenerateRequest represents the regenerate API request.
type RegenerateRequest struct {
	Limit int `json:"limit" binding:"min=0,max=100000"`
}

// RegenerateResponse represents the regenerate API response.
type RegenerateResponse struct {
	Message string               `json:"message"`
	Stats   *service.IngestStats `json:"stats,omitempty"`
	Indexed int                  `json:"indexed"`
}

// JobStatusResponse represents the regeneration status.
type JobStatusResponse struct {
	IsRunning     bool                 `json:"is_running"`
	LastRunTime   string               `json:"last_run_time,omitempty"`
	LastRunStatus string               `json:"last_run_status,omitempty"`
	CurrentStats  *service.IngestStats `json:"current_stats,omitempty"`
}

// RebuildIndex handles POST /api/v1/admin/index/rebuild.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) RebuildIndex(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()

	n, err := h.internal.Rebuild(ctx)
	if err != nil {
		respondError(c, "Index rebuild failed", err)
		return
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      n,
	}).Info(ctx, "Index rebuild requested: client_ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"indexed": n})
}

// ReloadTaxonomy handles POST /api/v1/admin/taxonomy/reload.
// Tags embedded by the ingest CLI become visible to classification immediately.
func (h *AdminHandler) ReloadTaxonomy(c *gin.Context) {
	ctx := c.Request.Context()

	taxonomy, err := h.tags.ReloadTaxonomy(ctx)
	if err != nil {
		respondError(c, "Taxonomy reload failed", err)
		return
	}

	logger.With(logger.Fields{logger.FieldCount: taxonomy.Len()}).
		Info(ctx, "Taxonomy reloaded: client_ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"tags":        taxonomy.Len(),
		"by_category": taxonomy.ByCategory(),
	})
}

// RegenerateEmbeddings handles POST /api/v1/admin/embeddings/regenerate.
// Documents stored without an embedding are re-embedded and the index is rebuilt.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) RegenerateEmbeddings(c *gin.Context) {
	ctx := c.Request.Context()

	var req RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.CtxWarn(ctx, "Invalid regenerate request: client_ip=%s, error=%v", c.ClientIP(), err)
			badRequest(c, err.Error())
			return
		}
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Regenerate request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Embedding regeneration is already running"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting embedding regeneration: limit=%d", req.Limit)

	// Detached from the request so a client disconnect does not abort the job.
	jobCtx := logger.SetRequestID(context.Background(), logger.GetRequestID(ctx))
	stats, err := h.ingest.RegenerateEmbeddings(jobCtx, req.Limit)
	indexed := 0
	if err == nil {
		indexed, err = h.internal.Rebuild(jobCtx)
	}

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		respondError(c, "Embedding regeneration failed", err)
		return
	}

	c.JSON(http.StatusOK, RegenerateResponse{
		Message: "Embedding regeneration completed",
		Stats:   stats,
		Indexed: indexed,
	})
}

// GetJobStatus returns the current regeneration status.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AdminHandler) GetJobStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := JobStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// ListJobs handles GET /api/v1/admin/jobs.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	jobs, err := h.jobs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, "Failed to list jobs", err)
		return
	}
	if jobs == nil {
		jobs = []domain.IngestJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
