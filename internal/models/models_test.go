package models_test

import (
	"strings"
	"testing"

	"github.com/backbill/chronicle/internal/models"
)

func assertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func assertErrorContains(t *testing.T, err error, want string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}

	if !strings.Contains(err.Error(), want) {
		t.Errorf("expected error containing %q, got %q", want, err.Error())
	}
}

func TestCreateEntityRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     models.CreateEntityRequest
		wantErr string
	}{
		{name: "valid with id", req: models.CreateEntityRequest{ID: "cust-1", EntityType: "customer"}},
		{name: "valid without id", req: models.CreateEntityRequest{EntityType: "customer"}},
		{name: "missing entity type", req: models.CreateEntityRequest{ID: "cust-1"}, wantErr: "entity_type is required"},
		{name: "id too long", req: models.CreateEntityRequest{ID: strings.Repeat("x", 256), EntityType: "customer"}, wantErr: "exceeds maximum length"},
		{name: "entity type too long", req: models.CreateEntityRequest{EntityType: strings.Repeat("x", 101)}, wantErr: "exceeds maximum length"},
		{name: "data too large", req: models.CreateEntityRequest{EntityType: "customer", Data: map[string]any{"blob": strings.Repeat("x", 70000)}}, wantErr: "exceeds maximum length"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr != "" {
				assertErrorContains(t, err, tc.wantErr)
				return
			}
			assertNoError(t, err)
		})
	}
}

func TestCreateEntityRequest_GeneratesID(t *testing.T) {
	req := models.CreateEntityRequest{EntityType: "customer"}
	assertNoError(t, req.Validate())

	if req.ID == "" {
		t.Error("expected auto-generated ID, got empty")
	}
}

func TestMutateEntityRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     models.MutateEntityRequest
		wantErr string
	}{
		{name: "valid", req: models.MutateEntityRequest{ExpectedVersion: 1, Changes: map[string]any{"email": "b@x.com"}}},
		{name: "missing version", req: models.MutateEntityRequest{Changes: map[string]any{"email": "b@x.com"}}, wantErr: "expected_version"},
		{name: "empty changes", req: models.MutateEntityRequest{ExpectedVersion: 2}, wantErr: "changes must not be empty"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr != "" {
				assertErrorContains(t, err, tc.wantErr)
				return
			}
			assertNoError(t, err)
		})
	}
}

func TestOperation_Valid(t *testing.T) {
	for _, op := range []models.Operation{models.OpCreate, models.OpUpdate, models.OpDelete, models.OpSoftDelete, models.OpRestore} {
		if !op.Valid() {
			t.Errorf("operation %q should be valid", op)
		}
	}

	if models.Operation("TRUNCATE").Valid() {
		t.Error("unknown operation should not be valid")
	}
}

func TestTakeSnapshotRequest_Validate(t *testing.T) {
	req := models.TakeSnapshotRequest{}
	assertNoError(t, req.Validate())

	if req.SnapshotType != models.SnapshotManual {
		t.Errorf("empty type should default to manual, got %q", req.SnapshotType)
	}

	bad := models.TakeSnapshotRequest{SnapshotType: "hourly"}
	assertErrorContains(t, bad.Validate(), "invalid snapshot_type")
}

func TestQueueItem_Record(t *testing.T) {
	item := models.QueueItem{Payload: []byte(`{"table_name":"customer","record_id":"c1","operation":"CREATE","version_after":1}`)}

	rec, err := item.Record()
	assertNoError(t, err)

	if rec.TableName != "customer" || rec.VersionAfter != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}

	item.Payload = []byte(`{not json`)
	if _, err := item.Record(); err == nil {
		t.Error("expected error for malformed payload")
	}
}
