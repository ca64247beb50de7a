package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/backbill/chronicle/internal/api"
	"github.com/backbill/chronicle/internal/models"
)

func TestSnapshotTake_Created(t *testing.T) {
	t.Parallel()

	repo := &mockSnapshotRepo{
		takeFn: func(_ context.Context, req models.TakeSnapshotRequest, actor models.Actor) (*models.Snapshot, bool, error) {
			return &models.Snapshot{
				ID:           uuid.New(),
				SnapshotType: req.SnapshotType,
				CreatedBy:    actor.ID,
			}, true, nil
		},
	}

	r := newTestRouter()
	h := api.NewSnapshotHandler(repo, testLogger())
	r.POST("/snapshots", h.Take)

	w := doRequest(r, http.MethodPost, "/snapshots", `{"snapshot_type":"manual"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSnapshotTake_Deduplicated(t *testing.T) {
	t.Parallel()

	existing := uuid.New()

	repo := &mockSnapshotRepo{
		takeFn: func(_ context.Context, _ models.TakeSnapshotRequest, _ models.Actor) (*models.Snapshot, bool, error) {
			return &models.Snapshot{ID: existing, SnapshotType: models.SnapshotManual}, false, nil
		},
	}

	r := newTestRouter()
	h := api.NewSnapshotHandler(repo, testLogger())
	r.POST("/snapshots", h.Take)

	w := doRequest(r, http.MethodPost, "/snapshots", `{"snapshot_type":"manual"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for dedup hit, got %d: %s", w.Code, w.Body.String())
	}

	var snap models.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if snap.ID != existing {
		t.Errorf("expected existing snapshot %s, got %s", existing, snap.ID)
	}
}

func TestSnapshotTake_InvalidType(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewSnapshotHandler(&mockSnapshotRepo{}, testLogger())
	r.POST("/snapshots", h.Take)

	w := doRequest(r, http.MethodPost, "/snapshots", `{"snapshot_type":"hourly"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSnapshotGet_BadID(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewSnapshotHandler(&mockSnapshotRepo{}, testLogger())
	r.GET("/snapshots/:id", h.Get)

	w := doRequest(r, http.MethodGet, "/snapshots/not-a-uuid", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSnapshotGet_NotFound(t *testing.T) {
	t.Parallel()

	repo := &mockSnapshotRepo{
		getFn: func(_ context.Context, _ uuid.UUID) (*models.Snapshot, error) {
			return nil, models.ErrSnapshotNotFound
		},
	}

	r := newTestRouter()
	h := api.NewSnapshotHandler(repo, testLogger())
	r.GET("/snapshots/:id", h.Get)

	w := doRequest(r, http.MethodGet, "/snapshots/"+uuid.NewString(), "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSnapshotAncestry_OK(t *testing.T) {
	t.Parallel()

	child := uuid.New()
	parent := uuid.New()

	repo := &mockSnapshotRepo{
		ancestryFn: func(_ context.Context, id uuid.UUID) ([]models.Snapshot, error) {
			return []models.Snapshot{
				{ID: id, PreviousSnapshotID: &parent},
				{ID: parent},
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewSnapshotHandler(repo, testLogger())
	r.GET("/snapshots/:id/ancestry", h.Ancestry)

	w := doRequest(r, http.MethodGet, "/snapshots/"+child.String()+"/ancestry", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Ancestry []models.Snapshot `json:"ancestry"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(body.Ancestry) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(body.Ancestry))
	}

	if body.Ancestry[0].ID != child {
		t.Errorf("expected chain to start at %s, got %s", child, body.Ancestry[0].ID)
	}
}

func TestSnapshotRollback_OK(t *testing.T) {
	t.Parallel()

	target := uuid.New()

	repo := &mockSnapshotRepo{
		rollbackFn: func(_ context.Context, snapshotID uuid.UUID, actor models.Actor) (*models.Snapshot, error) {
			if snapshotID != target {
				t.Errorf("expected target %s, got %s", target, snapshotID)
			}

			return &models.Snapshot{
				ID:                 uuid.New(),
				SnapshotType:       models.SnapshotRollback,
				PreviousSnapshotID: &snapshotID,
				CreatedBy:          actor.ID,
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewSnapshotHandler(repo, testLogger())
	r.POST("/snapshots/:id/rollback", h.Rollback)

	w := doRequest(r, http.MethodPost, "/snapshots/"+target.String()+"/rollback", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap models.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if snap.SnapshotType != models.SnapshotRollback {
		t.Errorf("expected rollback snapshot, got %q", snap.SnapshotType)
	}

	if snap.PreviousSnapshotID == nil || *snap.PreviousSnapshotID != target {
		t.Errorf("expected rollback chained to %s, got %v", target, snap.PreviousSnapshotID)
	}
}

func TestSnapshotRollback_NotFound(t *testing.T) {
	t.Parallel()

	repo := &mockSnapshotRepo{
		rollbackFn: func(_ context.Context, _ uuid.UUID, _ models.Actor) (*models.Snapshot, error) {
			return nil, models.ErrSnapshotNotFound
		},
	}

	r := newTestRouter()
	h := api.NewSnapshotHandler(repo, testLogger())
	r.POST("/snapshots/:id/rollback", h.Rollback)

	w := doRequest(r, http.MethodPost, "/snapshots/"+uuid.NewString()+"/rollback", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
