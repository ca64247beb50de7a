package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/middleware"
	"github.com/backbill/chronicle/internal/models"
)

// EntityHandler serves versioned entity CRUD endpoints.
type EntityHandler struct {
	repo EntityRepository
	log  *logrus.Logger
}

// NewEntityHandler creates an EntityHandler with the given service and logger.
func NewEntityHandler(repo EntityRepository, log *logrus.Logger) *EntityHandler {
	return &EntityHandler{repo: repo, log: log}
}

// List handles GET /api/v1/entities.
func (h *EntityHandler) List(c *gin.Context) {
	typeFilter := c.Query("type")
	includeDeleted := c.Query("include_deleted") == "true"
	limit := parseInt(c.DefaultQuery("limit", "50"), 50)
	offset := parseOffset(c.DefaultQuery("offset", "0"))

	entities, hasMore, err := h.repo.ListEntities(c.Request.Context(), typeFilter, includeDeleted, limit, offset)
	if err != nil {
		h.log.WithError(err).Error("listing entities")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"entities": entities, "has_more": hasMore})
}

// Get handles GET /api/v1/entities/:id.
func (h *EntityHandler) Get(c *gin.Context) {
	entityID := c.Param("id")
	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	entity, err := h.repo.GetEntity(c.Request.Context(), entityID)
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("getting entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, entity)
}

// Create handles POST /api/v1/entities.
func (h *EntityHandler) Create(c *gin.Context) {
	var req models.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	entity, err := h.repo.CreateEntity(c.Request.Context(), req, middleware.GetActor(c))
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("creating entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusCreated, entity)
}

// Update handles PATCH /api/v1/entities/:id.
func (h *EntityHandler) Update(c *gin.Context) {
	entityID := c.Param("id")
	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	var req models.MutateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	entity, err := h.repo.UpdateEntity(c.Request.Context(), entityID, req, middleware.GetActor(c))
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("updating entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, entity)
}

// Delete handles DELETE /api/v1/entities/:id (soft delete).
func (h *EntityHandler) Delete(c *gin.Context) {
	entityID := c.Param("id")
	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	entity, err := h.repo.SoftDeleteEntity(c.Request.Context(), entityID, middleware.GetActor(c))
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("soft-deleting entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, entity)
}

// Restore handles POST /api/v1/entities/:id/restore.
func (h *EntityHandler) Restore(c *gin.Context) {
	entityID := c.Param("id")
	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	entity, err := h.repo.RestoreEntity(c.Request.Context(), entityID, middleware.GetActor(c))
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("restoring entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, entity)
}
