package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hearth/internal/service"
)

// SearchHandler handles search-related endpoints.
type SearchHandler struct {
	searchService *service.SearchService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searchService: search service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searchService *service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// Search handles POST /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	var req service.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SearchGet handles GET /api/v1/search for simple search queries.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) SearchGet(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		badRequest(c, "Query parameter 'q' is required")
		return
	}

	req := service.SearchRequest{
		Query:  query,
		Region: c.Query("region"),
		Topic:  c.Query("topic"),
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			badRequest(c, "Invalid limit: "+limit)
			return
		}
		req.Limit = n
	}
	if include := c.Query("include_external"); include != "" {
		v, err := strconv.ParseBool(include)
		if err != nil {
			badRequest(c, "Invalid include_external: "+include)
			return
		}
		req.IncludeExternal = &v
	}

	result, err := h.searchService.Search(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "Search failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}
