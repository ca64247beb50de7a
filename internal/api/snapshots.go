package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/middleware"
	"github.com/backbill/chronicle/internal/models"
)

// SnapshotHandler serves configuration snapshot endpoints.
type SnapshotHandler struct {
	repo SnapshotRepository
	log  *logrus.Logger
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(repo SnapshotRepository, log *logrus.Logger) *SnapshotHandler {
	return &SnapshotHandler{repo: repo, log: log}
}

// parseSnapshotID extracts and validates the snapshot UUID path parameter.
func parseSnapshotID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "snapshot id must be a UUID")

		return uuid.Nil, false
	}

	return id, true
}

// List handles GET /api/v1/snapshots.
func (h *SnapshotHandler) List(c *gin.Context) {
	typeFilter := models.SnapshotType(c.Query("type"))
	if typeFilter != "" && !typeFilter.Valid() {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid snapshot type filter")

		return
	}

	limit := parseInt(c.DefaultQuery("limit", "50"), 50)
	offset := parseOffset(c.DefaultQuery("offset", "0"))

	snapshots, hasMore, err := h.repo.List(c.Request.Context(), typeFilter, limit, offset)
	if err != nil {
		h.log.WithError(err).Error("listing snapshots")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots, "has_more": hasMore})
}

// Take handles POST /api/v1/snapshots.
func (h *SnapshotHandler) Take(c *gin.Context) {
	var req models.TakeSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	snap, created, err := h.repo.Take(c.Request.Context(), req, middleware.GetActor(c))
	if err != nil {
		h.log.WithError(err).Error("taking snapshot")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	// Content dedup resolves to the existing snapshot rather than creating
	// a duplicate; 200 instead of 201 signals that to the caller.
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}

	c.JSON(status, snap)
}

// Get handles GET /api/v1/snapshots/:id.
func (h *SnapshotHandler) Get(c *gin.Context) {
	id, ok := parseSnapshotID(c)
	if !ok {
		return
	}

	snap, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("getting snapshot")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, snap)
}

// Ancestry handles GET /api/v1/snapshots/:id/ancestry.
func (h *SnapshotHandler) Ancestry(c *gin.Context) {
	id, ok := parseSnapshotID(c)
	if !ok {
		return
	}

	chain, err := h.repo.Ancestry(c.Request.Context(), id)
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("querying snapshot ancestry")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"ancestry": chain})
}

// Rollback handles POST /api/v1/snapshots/:id/rollback.
func (h *SnapshotHandler) Rollback(c *gin.Context) {
	id, ok := parseSnapshotID(c)
	if !ok {
		return
	}

	result, err := h.repo.RollbackTo(c.Request.Context(), id, middleware.GetActor(c))
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("rolling back configuration")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, result)
}
