package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// AuditService handles audit log queries.
type AuditService struct {
	c *Client
}

// auditQueryResponse wraps the paginated audit query response.
type auditQueryResponse struct {
	Records []AuditRecord `json:"records"`
	HasMore bool          `json:"has_more"`
}

// Trail returns the complete version history of one entity in version order.
func (s *AuditService) Trail(ctx context.Context, entityType, recordID string, from, to *time.Time) ([]AuditRecord, error) {
	params := url.Values{}
	params.Set("entity_type", entityType)
	if from != nil {
		params.Set("from", from.Format(time.RFC3339))
	}
	if to != nil {
		params.Set("to", to.Format(time.RFC3339))
	}
	var resp struct {
		Trail []AuditRecord `json:"trail"`
	}
	if err := s.c.get(ctx, fmt.Sprintf("/api/v1/entities/%s/trail", url.PathEscape(recordID)), params, &resp); err != nil {
		return nil, err
	}
	return resp.Trail, nil
}

// Query searches the audit log with optional filters, newest first.
func (s *AuditService) Query(ctx context.Context, opts *AuditQueryOptions) ([]AuditRecord, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.EntityType != "" {
			params.Set("entity_type", opts.EntityType)
		}
		if opts.RecordID != "" {
			params.Set("record_id", opts.RecordID)
		}
		if opts.Operation != "" {
			params.Set("operation", opts.Operation)
		}
		if opts.ActorID != "" {
			params.Set("actor_id", opts.ActorID)
		}
		if opts.BatchID != "" {
			params.Set("batch_id", opts.BatchID)
		}
		if opts.From != nil {
			params.Set("from", opts.From.Format(time.RFC3339))
		}
		if opts.To != nil {
			params.Set("to", opts.To.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp auditQueryResponse
	if err := s.c.get(ctx, "/api/v1/audit", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Records, resp.HasMore, nil
}
