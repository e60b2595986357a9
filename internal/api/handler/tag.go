package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/service"
)

// TagHandler handles taxonomy endpoints.
type TagHandler struct {
	tags *service.TagService
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(tags *service.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

// ClassifyRequest is the body of POST /api/v1/tags/classify.
type ClassifyRequest struct {
	Text string `json:"text" binding:"required"`
}

// ListTags handles GET /api/v1/tags?category=.
func (h *TagHandler) ListTags(c *gin.Context) {
	var category *domain.TagCategory
	if raw := c.Query("category"); raw != "" {
		parsed := domain.ParseTagCategory(raw)
		category = &parsed
	}

	tags, err := h.tags.List(c.Request.Context(), category)
	if err != nil {
		respondError(c, "Failed to list tags", err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"total": len(tags),
	})
}

// Classify handles POST /api/v1/tags/classify.
func (h *TagHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	tags, err := h.tags.Classify(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, "Classification failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": domain.RefsOf(tags)})
}
