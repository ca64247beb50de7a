package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/models"
)

// AuditReader is the read side of the audit log.
type AuditReader interface {
	GetAuditTrail(ctx context.Context, tableName, recordID string, from, to *time.Time) ([]models.AuditRecord, error)
	QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
}

// AuditService exposes compliance queries over the audit log.
type AuditService struct {
	store AuditReader
	log   *logrus.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(store AuditReader, log *logrus.Logger) *AuditService {
	return &AuditService{store: store, log: log}
}

// GetAuditTrail returns a record's full history in version order.
func (s *AuditService) GetAuditTrail(
	ctx context.Context, tableName, recordID string, from, to *time.Time,
) ([]models.AuditRecord, error) {
	return s.store.GetAuditTrail(ctx, tableName, recordID, from, to)
}

// QueryAudit runs a filtered audit query, newest first.
func (s *AuditService) QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	if opts.Operation != "" && !opts.Operation.Valid() {
		return nil, false, models.ErrInvalidOperation
	}

	return s.store.QueryAudit(ctx, opts)
}
