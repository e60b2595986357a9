package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/service"
)

const maxListLimit = 1000

// DocumentHandler handles document endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "Invalid "+key+": "+raw)
		return 0, false
	}
	return n, true
}

func documentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid document id: "+c.Param("id"))
		return 0, false
	}
	return uint(id), true
}

func nonNilDocuments(docs []domain.Document) []domain.Document {
	if docs == nil {
		return []domain.Document{}
	}
	return docs
}

// ListDocuments handles GET /api/v1/documents.
// The total match count is returned in the X-Total-Count header.
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 100)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	filter := &domain.DocumentFilter{
		Region: c.Query("region"),
		Topic:  c.Query("topic"),
		Search: c.Query("search"),
		Skip:   skip,
		Limit:  limit,
		SortBy: c.DefaultQuery("sort_by", "id"),
		Order:  c.DefaultQuery("order", "asc"),
	}
	if c.Query("year") != "" {
		year, ok := queryInt(c, "year", 0)
		if !ok {
			return
		}
		filter.Year = &year
	}
	if raw := c.Query("resource_type"); raw != "" {
		rt := domain.ResourceType(strings.ToUpper(raw))
		if !rt.Valid() {
			badRequest(c, "Unknown resource_type: "+raw)
			return
		}
		filter.ResourceType = &rt
	}

	docs, total, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to list documents", err)
		return
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, nonNilDocuments(docs))
}

// GetDocument handles GET /api/v1/documents/:id.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, "Failed to get document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// CreateDocument handles POST /api/v1/documents. Creating an existing title
// returns the stored document with 200 instead of 201.
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var in service.DocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	doc, created, err := h.documents.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, "Failed to create document", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, doc)
}

// UpdateDocument handles PUT /api/v1/documents/:id.
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	var in service.DocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, "Failed to update document", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetYearRange handles GET /api/v1/documents/years.
func (h *DocumentHandler) GetYearRange(c *gin.Context) {
	years, err := h.documents.YearRange(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to get year range", err)
		return
	}
	c.JSON(http.StatusOK, years)
}

// ListByFramework handles GET /api/v1/documents/framework/:framework.
func (h *DocumentHandler) ListByFramework(c *gin.Context) {
	skip, ok := queryInt(c, "skip", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 100)
	if !ok {
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	docs, err := h.documents.ByFramework(c.Request.Context(), c.Param("framework"), skip, limit)
	if err != nil {
		respondError(c, "Failed to list documents by framework", err)
		return
	}
	c.JSON(http.StatusOK, nonNilDocuments(docs))
}
