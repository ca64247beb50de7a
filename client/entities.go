package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// EntityService handles versioned entity operations.
type EntityService struct {
	c *Client
}

// entityListResponse wraps the paginated entity list response.
type entityListResponse struct {
	Entities []Entity `json:"entities"`
	HasMore  bool     `json:"has_more"`
}

// List returns entities with optional filtering and pagination.
func (s *EntityService) List(ctx context.Context, opts *EntityListOptions) ([]Entity, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Type != "" {
			params.Set("type", opts.Type)
		}
		if opts.IncludeDeleted {
			params.Set("include_deleted", "true")
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp entityListResponse
	if err := s.c.get(ctx, "/api/v1/entities", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Entities, resp.HasMore, nil
}

// Get returns a single entity by ID. Soft-deleted entities are still
// returned, with IsDeleted set.
func (s *EntityService) Get(ctx context.Context, id string) (*Entity, error) {
	var entity Entity
	if err := s.c.get(ctx, "/api/v1/entities/"+url.PathEscape(id), nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Create creates a new entity at version 1.
func (s *EntityService) Create(ctx context.Context, req *CreateEntityRequest) (*Entity, error) {
	var entity Entity
	if err := s.c.post(ctx, "/api/v1/entities", req, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Update merges changes into an entity. The request's ExpectedVersion must
// match the current version or the call fails with a stale_version conflict
// (check with IsStaleVersion).
func (s *EntityService) Update(ctx context.Context, id string, req *MutateEntityRequest) (*Entity, error) {
	var entity Entity
	if err := s.c.patch(ctx, "/api/v1/entities/"+url.PathEscape(id), req, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Delete soft-deletes an entity. The entity remains readable and can be
// restored; deleting an already-deleted entity is a no-op.
func (s *EntityService) Delete(ctx context.Context, id string) (*Entity, error) {
	var entity Entity
	if err := s.c.del(ctx, "/api/v1/entities/"+url.PathEscape(id), nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Restore brings a soft-deleted entity back.
func (s *EntityService) Restore(ctx context.Context, id string) (*Entity, error) {
	var entity Entity
	if err := s.c.post(ctx, fmt.Sprintf("/api/v1/entities/%s/restore", url.PathEscape(id)), nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}
