package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/models"
)

// AuditHandler serves audit log endpoints.
type AuditHandler struct {
	repo AuditRepository
	log  *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(repo AuditRepository, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, log: log}
}

// Trail handles GET /api/v1/entities/:id/trail. The entity_type query
// parameter names the audited table; together with the path ID it keys the
// record's history.
func (h *AuditHandler) Trail(c *gin.Context) {
	recordID := c.Param("id")
	if err := validatePathID(recordID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	tableName := c.Query("entity_type")
	if tableName == "" {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "entity_type query parameter is required")

		return
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	trail, err := h.repo.GetAuditTrail(c.Request.Context(), tableName, recordID, from, to)
	if err != nil {
		h.log.WithError(err).Error("querying audit trail")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"trail": trail})
}

// Query handles GET /api/v1/audit.
func (h *AuditHandler) Query(c *gin.Context) {
	opts := models.AuditQueryOpts{
		TableName: c.Query("entity_type"),
		RecordID:  c.Query("record_id"),
		Operation: models.Operation(c.Query("operation")),
		ActorID:   c.Query("actor_id"),
		Limit:     parseInt(c.Query("limit"), 50),
		Offset:    parseOffset(c.Query("offset")),
	}

	if opts.Operation != "" && !opts.Operation.Valid() {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid operation filter")

		return
	}

	if bid := c.Query("batch_id"); bid != "" {
		id, err := uuid.Parse(bid)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid batch_id, must be a UUID")

			return
		}
		opts.BatchID = &id
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}
	opts.From, opts.To = from, to

	records, hasMore, err := h.repo.QueryAudit(c.Request.Context(), opts)
	if err != nil {
		h.log.WithError(err).Error("querying audit log")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "has_more": hasMore})
}
