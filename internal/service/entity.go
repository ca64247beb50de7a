// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/models"
)

// EntityStore is the data-access interface EntityService depends on.
type EntityStore interface {
	CreateEntity(ctx context.Context, req models.CreateEntityRequest, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	ListEntities(ctx context.Context, typeFilter string, includeDeleted bool, limit, offset int) ([]models.Entity, bool, error)
	UpdateEntity(ctx context.Context, id string, req models.MutateEntityRequest, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	SoftDeleteEntity(ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	RestoreEntity(ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	ReplaceEntityData(ctx context.Context, id string, data map[string]any, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
}

// EntityService wraps EntityStore with request validation and mutation logging.
type EntityService struct {
	store EntityStore
	log   *logrus.Logger
}

// NewEntityService creates an EntityService.
func NewEntityService(store EntityStore, log *logrus.Logger) *EntityService {
	return &EntityService{store: store, log: log}
}

// CreateEntity validates and creates a new entity at version 1.
func (s *EntityService) CreateEntity(ctx context.Context, req models.CreateEntityRequest, actor models.Actor) (*models.Entity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e, err := s.store.CreateEntity(ctx, req, actor, nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"entity_id":   e.ID,
		"entity_type": e.EntityType,
		"actor":       actor.ID,
	}).Info("entity created")

	return e, nil
}

// GetEntity returns a single entity by ID (pass-through).
func (s *EntityService) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return s.store.GetEntity(ctx, id)
}

// ListEntities returns a paginated entity list (pass-through).
func (s *EntityService) ListEntities(
	ctx context.Context, typeFilter string, includeDeleted bool, limit, offset int,
) ([]models.Entity, bool, error) {
	return s.store.ListEntities(ctx, typeFilter, includeDeleted, limit, offset)
}

// UpdateEntity validates and applies a change set under an optimistic
// version check.
func (s *EntityService) UpdateEntity(
	ctx context.Context, id string, req models.MutateEntityRequest, actor models.Actor,
) (*models.Entity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e, err := s.store.UpdateEntity(ctx, id, req, actor, nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"entity_id": id,
		"version":   e.Version,
		"actor":     actor.ID,
	}).Info("entity updated")

	return e, nil
}

// SoftDeleteEntity marks an entity deleted (idempotent).
func (s *EntityService) SoftDeleteEntity(ctx context.Context, id string, actor models.Actor) (*models.Entity, error) {
	e, err := s.store.SoftDeleteEntity(ctx, id, actor, nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"entity_id": id,
		"version":   e.Version,
		"actor":     actor.ID,
	}).Info("entity soft-deleted")

	return e, nil
}

// RestoreEntity brings a soft-deleted entity back.
func (s *EntityService) RestoreEntity(ctx context.Context, id string, actor models.Actor) (*models.Entity, error) {
	e, err := s.store.RestoreEntity(ctx, id, actor, nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"entity_id": id,
		"version":   e.Version,
		"actor":     actor.ID,
	}).Info("entity restored")

	return e, nil
}
