package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/timmy/hearth/internal/index"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    *gorm.DB
	index index.VectorIndex
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, idx index.VectorIndex) *HealthHandler {
	return &HealthHandler{db: db, index: idx}
}

// Health reports database reachability and vector index state.
// The index may legitimately be unbuilt; only a failed db ping makes the service unhealthy.
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = err.Error()
	}
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbStatus,
		"index": gin.H{
			"built": h.index.Built(),
			"size":  h.index.Len(),
		},
	})
}
