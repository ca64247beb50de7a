package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// SnapshotService handles configuration snapshot operations.
type SnapshotService struct {
	c *Client
}

// snapshotListResponse wraps the paginated snapshot list response.
type snapshotListResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
	HasMore   bool       `json:"has_more"`
}

// List returns snapshots newest first, optionally filtered by type.
func (s *SnapshotService) List(ctx context.Context, opts *SnapshotListOptions) ([]Snapshot, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Type != "" {
			params.Set("type", opts.Type)
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp snapshotListResponse
	if err := s.c.get(ctx, "/api/v1/snapshots", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Snapshots, resp.HasMore, nil
}

// Take captures a configuration snapshot. If the content matches the latest
// non-expired snapshot of the same type, the existing snapshot is returned
// instead of creating a duplicate.
func (s *SnapshotService) Take(ctx context.Context, req *TakeSnapshotRequest) (*Snapshot, error) {
	var snap Snapshot
	if err := s.c.post(ctx, "/api/v1/snapshots", req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Get returns a single snapshot by ID.
func (s *SnapshotService) Get(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	if err := s.c.get(ctx, "/api/v1/snapshots/"+url.PathEscape(id), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Ancestry returns the snapshot chain from the given snapshot back to its
// root, newest first.
func (s *SnapshotService) Ancestry(ctx context.Context, id string) ([]Snapshot, error) {
	var resp struct {
		Ancestry []Snapshot `json:"ancestry"`
	}
	if err := s.c.get(ctx, fmt.Sprintf("/api/v1/snapshots/%s/ancestry", url.PathEscape(id)), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ancestry, nil
}

// Rollback restores all config entities to the state captured in the given
// snapshot and returns the rollback snapshot documenting the operation.
func (s *SnapshotService) Rollback(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	if err := s.c.post(ctx, fmt.Sprintf("/api/v1/snapshots/%s/rollback", url.PathEscape(id)), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
