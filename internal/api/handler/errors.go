package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
)

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistenceConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSearchFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrEmbeddingFailure), errors.Is(err, domain.ErrExternalProvider):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": "<action>: <cause>"} with the mapped status.
func respondError(c *gin.Context, action string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.CtxError(c.Request.Context(), "%s: %v", action, err)
	} else {
		logger.CtxWarn(c.Request.Context(), "%s: %v", action, err)
	}
	c.JSON(status, gin.H{"error": action + ": " + err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
