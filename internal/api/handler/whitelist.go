package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hearth/internal/repository"
)

// WhitelistHandler manages the domains external search may draw from.
type WhitelistHandler struct {
	whitelist *repository.WhitelistRepository
}

// NewWhitelistHandler creates a new whitelist handler.
func NewWhitelistHandler(whitelist *repository.WhitelistRepository) *WhitelistHandler {
	return &WhitelistHandler{whitelist: whitelist}
}

// DomainRequest names one domain.
type DomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// ListDomains handles GET /api/v1/whitelist.
func (h *WhitelistHandler) ListDomains(c *gin.Context) {
	domains, err := h.whitelist.ListDomains(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to list whitelist", err)
		return
	}
	if domains == nil {
		domains = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

// AddDomain handles POST /api/v1/whitelist.
func (h *WhitelistHandler) AddDomain(c *gin.Context) {
	var req DomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	d, err := h.whitelist.Add(c.Request.Context(), req.Domain)
	if err != nil {
		respondError(c, "Failed to add domain", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"domain": d})
}

// RemoveDomain handles DELETE /api/v1/whitelist/:domain.
func (h *WhitelistHandler) RemoveDomain(c *gin.Context) {
	if err := h.whitelist.Remove(c.Request.Context(), c.Param("domain")); err != nil {
		respondError(c, "Failed to remove domain", err)
		return
	}
	c.Status(http.StatusNoContent)
}
