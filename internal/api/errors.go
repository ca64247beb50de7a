package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/backbill/chronicle/internal/httputil"
	"github.com/backbill/chronicle/internal/metrics"
	"github.com/backbill/chronicle/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
	ErrCodeConflict        = "conflict"
	ErrCodeStaleVersion    = "stale_version"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// respondDomainError maps the shared business-rule errors to HTTP responses.
// Returns false when the error is not a known domain error, in which case the
// caller handles it as an internal error.
func respondDomainError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, models.ErrEntityNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity not found")
	case errors.Is(err, models.ErrSnapshotNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "snapshot not found")
	case errors.Is(err, models.ErrQueueItemNotFound):
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "queue item not found")
	case errors.Is(err, models.ErrStaleVersion):
		respondError(c, http.StatusConflict, ErrCodeStaleVersion, "expected_version does not match current version")
	case errors.Is(err, models.ErrStateConflict):
		respondError(c, http.StatusConflict, ErrCodeConflict, "entity is soft-deleted")
	case errors.Is(err, models.ErrInvalidState):
		respondError(c, http.StatusConflict, ErrCodeConflict, "entity is not deleted")
	case errors.Is(err, models.ErrInvalidTransition):
		respondError(c, http.StatusConflict, ErrCodeConflict, "invalid queue item state for this operation")
	case errors.Is(err, models.ErrDuplicateKey):
		respondError(c, http.StatusConflict, ErrCodeConflict, "entity with this ID already exists")
	default:
		return false
	}

	return true
}
