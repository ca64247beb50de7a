package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/backbill/chronicle/internal/api"
	"github.com/backbill/chronicle/internal/models"
)

func TestAuditTrail_OK(t *testing.T) {
	t.Parallel()

	repo := &mockAuditRepo{
		trailFn: func(_ context.Context, tableName, recordID string, _, _ *time.Time) ([]models.AuditRecord, error) {
			if tableName != "customer" {
				t.Errorf("expected table 'customer', got %q", tableName)
			}
			if recordID != "cust-1" {
				t.Errorf("expected record 'cust-1', got %q", recordID)
			}

			return []models.AuditRecord{
				{TableName: tableName, RecordID: recordID, Operation: models.OpCreate, VersionAfter: 1},
				{TableName: tableName, RecordID: recordID, Operation: models.OpUpdate, VersionAfter: 2},
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewAuditHandler(repo, testLogger())
	r.GET("/entities/:id/trail", h.Trail)

	w := doRequest(r, http.MethodGet, "/entities/cust-1/trail?entity_type=customer", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Trail []models.AuditRecord `json:"trail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(body.Trail) != 2 {
		t.Fatalf("expected 2 records, got %d", len(body.Trail))
	}
}

func TestAuditTrail_MissingEntityType(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewAuditHandler(&mockAuditRepo{}, testLogger())
	r.GET("/entities/:id/trail", h.Trail)

	w := doRequest(r, http.MethodGet, "/entities/cust-1/trail", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditTrail_BadTimeRange(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewAuditHandler(&mockAuditRepo{}, testLogger())
	r.GET("/entities/:id/trail", h.Trail)

	w := doRequest(r, http.MethodGet, "/entities/cust-1/trail?entity_type=customer&from=yesterday", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditQuery_Filters(t *testing.T) {
	t.Parallel()

	batchID := uuid.New()

	repo := &mockAuditRepo{
		queryFn: func(_ context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
			if opts.Operation != models.OpSoftDelete {
				t.Errorf("expected operation SOFT_DELETE, got %q", opts.Operation)
			}
			if opts.BatchID == nil || *opts.BatchID != batchID {
				t.Errorf("expected batch %s, got %v", batchID, opts.BatchID)
			}
			if opts.ActorID != "ops-7" {
				t.Errorf("expected actor 'ops-7', got %q", opts.ActorID)
			}

			return []models.AuditRecord{{Operation: opts.Operation}}, false, nil
		},
	}

	r := newTestRouter()
	h := api.NewAuditHandler(repo, testLogger())
	r.GET("/audit", h.Query)

	w := doRequest(r, http.MethodGet, "/audit?operation=SOFT_DELETE&batch_id="+batchID.String()+"&actor_id=ops-7", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditQuery_InvalidOperation(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewAuditHandler(&mockAuditRepo{}, testLogger())
	r.GET("/audit", h.Query)

	w := doRequest(r, http.MethodGet, "/audit?operation=EXPLODE", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditQuery_InvalidBatchID(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewAuditHandler(&mockAuditRepo{}, testLogger())
	r.GET("/audit", h.Query)

	w := doRequest(r, http.MethodGet, "/audit?batch_id=not-a-uuid", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
