package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueueHandler serves audit queue operator endpoints.
type QueueHandler struct {
	repo QueueRepository
	log  *logrus.Logger
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(repo QueueRepository, log *logrus.Logger) *QueueHandler {
	return &QueueHandler{repo: repo, log: log}
}

// Stats handles GET /api/v1/queue/stats.
func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.repo.Stats(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("querying queue stats")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListDead handles GET /api/v1/queue/dead.
func (h *QueueHandler) ListDead(c *gin.Context) {
	limit := parseInt(c.DefaultQuery("limit", "50"), 50)
	offset := parseOffset(c.DefaultQuery("offset", "0"))

	items, hasMore, err := h.repo.ListDead(c.Request.Context(), limit, offset)
	if err != nil {
		h.log.WithError(err).Error("listing dead queue items")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "has_more": hasMore})
}

// RetryDead handles POST /api/v1/queue/dead/:id/retry.
func (h *QueueHandler) RetryDead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "id must be a positive integer")

		return
	}

	item, err := h.repo.RetryDead(c.Request.Context(), id)
	if err != nil {
		if respondDomainError(c, err) {
			return
		}

		h.log.WithError(err).Error("retrying dead queue item")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, item)
}
