package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// QueueService handles audit queue operator endpoints.
type QueueService struct {
	c *Client
}

// Stats returns per-status queue item counts.
func (s *QueueService) Stats(ctx context.Context) (*QueueStats, error) {
	var stats QueueStats
	if err := s.c.get(ctx, "/api/v1/queue/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListDead returns dead-lettered queue items awaiting manual intervention.
func (s *QueueService) ListDead(ctx context.Context, limit, offset int) ([]QueueItem, bool, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	var resp struct {
		Items   []QueueItem `json:"items"`
		HasMore bool        `json:"has_more"`
	}
	if err := s.c.get(ctx, "/api/v1/queue/dead", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Items, resp.HasMore, nil
}

// RetryDead requeues a dead queue item with a fresh retry budget.
func (s *QueueService) RetryDead(ctx context.Context, id int64) (*QueueItem, error) {
	var item QueueItem
	if err := s.c.post(ctx, fmt.Sprintf("/api/v1/queue/dead/%d/retry", id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
