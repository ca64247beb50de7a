package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/metrics"
	"github.com/backbill/chronicle/internal/models"
)

// SnapshotStore is the data-access interface SnapshotService depends on.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, bool, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	Ancestry(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error)
	ListSnapshots(ctx context.Context, typeFilter models.SnapshotType, limit, offset int) ([]models.Snapshot, bool, error)
}

// ConfigLister loads the current configuration entity set for capture.
type ConfigLister interface {
	ListAllByType(ctx context.Context, entityType string) ([]models.Entity, error)
}

// RollbackTarget is the entity mutation surface the rollback path uses.
type RollbackTarget interface {
	CreateEntity(ctx context.Context, req models.CreateEntityRequest, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	RestoreEntity(ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	ReplaceEntityData(ctx context.Context, id string, data map[string]any, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
	SoftDeleteEntity(ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error)
}

// SnapshotService captures, deduplicates, and rolls back configuration
// snapshots. A snapshot is the full set of non-deleted config entities,
// keyed by entity ID, hashed for content dedup.
type SnapshotService struct {
	snapshots SnapshotStore
	config    ConfigLister
	entities  RollbackTarget
	log       *logrus.Logger
	retention time.Duration
}

// NewSnapshotService creates a SnapshotService. retention controls snapshot
// expiry; zero disables it.
func NewSnapshotService(
	snapshots SnapshotStore,
	config ConfigLister,
	entities RollbackTarget,
	log *logrus.Logger,
	retention time.Duration,
) *SnapshotService {
	return &SnapshotService{
		snapshots: snapshots,
		config:    config,
		entities:  entities,
		log:       log,
		retention: retention,
	}
}

// HashConfiguration computes the canonical content hash of a configuration
// set. encoding/json marshals map keys in sorted order, so two sets with
// equal contents always hash identically regardless of insertion order.
func HashConfiguration(data map[string]map[string]any) (string, error) {
	canonical, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("canonicalizing configuration: %w", err)
	}

	sum := sha256.Sum256(canonical)

	return hex.EncodeToString(sum[:]), nil
}

// Capture reads the current config entity set into snapshot form.
func (s *SnapshotService) Capture(ctx context.Context) (map[string]map[string]any, error) {
	entities, err := s.config.ListAllByType(ctx, string(models.EntityTypeConfig))
	if err != nil {
		return nil, fmt.Errorf("capturing configuration: %w", err)
	}

	data := make(map[string]map[string]any, len(entities))
	for _, e := range entities {
		data[e.ID] = e.Data
	}

	return data, nil
}

// Take persists a snapshot. When req.Data is nil the current config entity
// set is captured. Returns the snapshot and whether it was newly created
// (false means content dedup resolved to an existing snapshot).
func (s *SnapshotService) Take(ctx context.Context, req models.TakeSnapshotRequest, actor models.Actor) (*models.Snapshot, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	data := req.Data
	if data == nil {
		captured, err := s.Capture(ctx)
		if err != nil {
			return nil, false, err
		}

		data = captured
	}

	hash, err := HashConfiguration(data)
	if err != nil {
		return nil, false, err
	}

	var expiresAt *time.Time
	if s.retention > 0 {
		t := time.Now().Add(s.retention).UTC()
		expiresAt = &t
	}

	snap, created, err := s.snapshots.InsertSnapshot(ctx, &models.Snapshot{
		SnapshotType:      req.SnapshotType,
		ConfigurationData: data,
		ConfigurationHash: hash,
		CreatedBy:         actor.ID,
		ExpiresAt:         expiresAt,
	})
	if err != nil {
		return nil, false, err
	}

	if !created {
		metrics.SnapshotDedupHits.Inc()
		s.log.WithFields(logrus.Fields{
			"snapshot_id": snap.ID,
			"hash":        hash[:12],
		}).Info("snapshot deduplicated by content hash")

		return snap, false, nil
	}

	s.log.WithFields(logrus.Fields{
		"snapshot_id":   snap.ID,
		"snapshot_type": snap.SnapshotType,
		"entities":      len(data),
		"actor":         actor.ID,
	}).Info("snapshot created")

	return snap, true, nil
}

// Get returns a snapshot by ID (pass-through).
func (s *SnapshotService) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return s.snapshots.GetSnapshot(ctx, id)
}

// Ancestry returns a snapshot's predecessor chain (pass-through).
func (s *SnapshotService) Ancestry(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error) {
	return s.snapshots.Ancestry(ctx, id)
}

// List returns snapshots newest first (pass-through).
func (s *SnapshotService) List(
	ctx context.Context, typeFilter models.SnapshotType, limit, offset int,
) ([]models.Snapshot, bool, error) {
	return s.snapshots.ListSnapshots(ctx, typeFilter, limit, offset)
}

// RollbackTo restores the config entity set to the state captured in the
// given snapshot. A pre_change snapshot of the current state is taken first,
// all writes share one batch ID for audit correlation, and a rollback
// snapshot chained to the target records the outcome. Entities missing from
// the current set are recreated, soft-deleted ones are restored first, and
// config entities absent from the target snapshot are soft-deleted.
func (s *SnapshotService) RollbackTo(ctx context.Context, snapshotID uuid.UUID, actor models.Actor) (*models.Snapshot, error) {
	target, err := s.snapshots.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	current, err := s.Capture(ctx)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.Take(ctx, models.TakeSnapshotRequest{
		SnapshotType: models.SnapshotPreChange,
		Data:         current,
	}, actor); err != nil {
		return nil, fmt.Errorf("taking pre-rollback snapshot: %w", err)
	}

	batchID := uuid.New()
	logger := s.log.WithFields(logrus.Fields{
		"snapshot_id": snapshotID,
		"batch_id":    batchID,
		"actor":       actor.ID,
	})

	for entityID, data := range target.ConfigurationData {
		if err := s.applyEntityState(ctx, entityID, data, actor, &batchID); err != nil {
			logger.WithError(err).WithField("entity_id", entityID).Error("rollback aborted")

			return nil, fmt.Errorf("rolling back entity %s: %w", entityID, err)
		}
	}

	for entityID := range current {
		if _, present := target.ConfigurationData[entityID]; present {
			continue
		}

		if _, err := s.entities.SoftDeleteEntity(ctx, entityID, actor, &batchID); err != nil {
			logger.WithError(err).WithField("entity_id", entityID).Error("rollback aborted")

			return nil, fmt.Errorf("removing entity %s absent from snapshot: %w", entityID, err)
		}
	}

	hash, err := HashConfiguration(target.ConfigurationData)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if s.retention > 0 {
		t := time.Now().Add(s.retention).UTC()
		expiresAt = &t
	}

	result, _, err := s.snapshots.InsertSnapshot(ctx, &models.Snapshot{
		SnapshotType:       models.SnapshotRollback,
		ConfigurationData:  target.ConfigurationData,
		ConfigurationHash:  hash,
		PreviousSnapshotID: &target.ID,
		CreatedBy:          actor.ID,
		ExpiresAt:          expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("recording rollback snapshot: %w", err)
	}

	logger.WithField("entities", len(target.ConfigurationData)).Info("configuration rolled back")

	return result, nil
}

// applyEntityState forces one config entity to the snapshotted data,
// recovering from missing or soft-deleted entities.
func (s *SnapshotService) applyEntityState(
	ctx context.Context, entityID string, data map[string]any, actor models.Actor, batchID *uuid.UUID,
) error {
	_, err := s.entities.ReplaceEntityData(ctx, entityID, data, actor, batchID)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, models.ErrEntityNotFound):
		_, err = s.entities.CreateEntity(ctx, models.CreateEntityRequest{
			ID:         entityID,
			EntityType: models.EntityTypeConfig,
			Data:       data,
		}, actor, batchID)

		return err

	case errors.Is(err, models.ErrStateConflict):
		if _, err := s.entities.RestoreEntity(ctx, entityID, actor, batchID); err != nil {
			return err
		}

		_, err = s.entities.ReplaceEntityData(ctx, entityID, data, actor, batchID)

		return err

	default:
		return err
	}
}
