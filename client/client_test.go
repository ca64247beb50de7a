package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithAPIKey("test-key"), WithActor("ops-1", "Test Operator"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, HealthResponse{Status: "ok", Version: "0.3.0"})
		},
	})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("got status %q, want ok", resp.Status)
	}
	if resp.Version != "0.3.0" {
		t.Errorf("got version %q, want 0.3.0", resp.Version)
	}
}

func TestEntitiesCRUD(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/entities": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"entities": []Entity{{ID: "cust-1", Version: 1}}, "has_more": false})
		},
		"POST /api/v1/entities": func(w http.ResponseWriter, r *http.Request) {
			var req CreateEntityRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			jsonResponse(w, 201, Entity{ID: req.ID, EntityType: req.EntityType, Data: req.Data, Version: 1})
		},
		"GET /api/v1/entities/cust-1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Entity{ID: "cust-1", EntityType: "customer", Version: 2})
		},
		"PATCH /api/v1/entities/cust-1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Entity{ID: "cust-1", Version: 3})
		},
		"DELETE /api/v1/entities/cust-1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Entity{ID: "cust-1", Version: 4, IsDeleted: true})
		},
		"POST /api/v1/entities/cust-1/restore": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Entity{ID: "cust-1", Version: 5})
		},
	})

	ctx := context.Background()

	entities, hasMore, err := c.Entities.List(ctx, nil)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(entities) != 1 || hasMore {
		t.Errorf("List: got %d entities, hasMore=%v", len(entities), hasMore)
	}

	entity, err := c.Entities.Create(ctx, &CreateEntityRequest{ID: "cust-2", EntityType: "customer", Data: map[string]any{"name": "Acme"}})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if entity.Version != 1 {
		t.Errorf("Create: got version %d", entity.Version)
	}

	entity, err = c.Entities.Get(ctx, "cust-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if entity.Version != 2 {
		t.Errorf("Get: got version %d", entity.Version)
	}

	entity, err = c.Entities.Update(ctx, "cust-1", &MutateEntityRequest{ExpectedVersion: 2, Changes: map[string]any{"name": "New"}})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if entity.Version != 3 {
		t.Errorf("Update: got version %d", entity.Version)
	}

	entity, err = c.Entities.Delete(ctx, "cust-1")
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if !entity.IsDeleted {
		t.Error("Delete: expected is_deleted=true")
	}

	if _, err := c.Entities.Restore(ctx, "cust-1"); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
}

func TestAuditQueries(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/entities/cust-1/trail": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("entity_type") != "customer" {
				jsonResponse(w, 400, map[string]string{"code": "invalid_request", "message": "entity_type required"})
				return
			}
			jsonResponse(w, 200, map[string]any{"trail": []AuditRecord{
				{RecordID: "cust-1", Operation: "CREATE", VersionAfter: 1},
				{RecordID: "cust-1", Operation: "UPDATE", VersionAfter: 2},
			}})
		},
		"GET /api/v1/audit": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("operation") != "SOFT_DELETE" {
				jsonResponse(w, 200, map[string]any{"records": []AuditRecord{}, "has_more": false})
				return
			}
			jsonResponse(w, 200, map[string]any{"records": []AuditRecord{{Operation: "SOFT_DELETE"}}, "has_more": true})
		},
	})

	ctx := context.Background()

	trail, err := c.Audit.Trail(ctx, "customer", "cust-1", nil, nil)
	if err != nil {
		t.Fatalf("Trail error: %v", err)
	}
	if len(trail) != 2 || trail[1].VersionAfter != 2 {
		t.Errorf("Trail: got %d records", len(trail))
	}

	records, hasMore, err := c.Audit.Query(ctx, &AuditQueryOptions{Operation: "SOFT_DELETE"})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(records) != 1 || !hasMore {
		t.Errorf("Query: got %d records, hasMore=%v", len(records), hasMore)
	}
}

func TestQueueOperations(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/queue/stats": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, QueueStats{Pending: 4, Dead: 2})
		},
		"GET /api/v1/queue/dead": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"items": []QueueItem{{ID: 7, Status: "dead"}}, "has_more": false})
		},
		"POST /api/v1/queue/dead/7/retry": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, QueueItem{ID: 7, Status: "pending"})
		},
	})

	ctx := context.Background()

	stats, err := c.Queue.Stats(ctx)
	if err != nil || stats.Pending != 4 {
		t.Fatalf("Stats: err=%v, stats=%+v", err, stats)
	}

	items, _, err := c.Queue.ListDead(ctx, 0, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListDead: err=%v, len=%d", err, len(items))
	}

	item, err := c.Queue.RetryDead(ctx, 7)
	if err != nil || item.Status != "pending" {
		t.Fatalf("RetryDead: err=%v, item=%+v", err, item)
	}
}

func TestSnapshotOperations(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/snapshots": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"snapshots": []Snapshot{{ID: "s1"}}, "has_more": false})
		},
		"POST /api/v1/snapshots": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 201, Snapshot{ID: "s2", SnapshotType: "manual"})
		},
		"GET /api/v1/snapshots/s1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Snapshot{ID: "s1", SnapshotType: "scheduled"})
		},
		"GET /api/v1/snapshots/s1/ancestry": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"ancestry": []Snapshot{{ID: "s1"}, {ID: "s0"}}})
		},
		"POST /api/v1/snapshots/s1/rollback": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, Snapshot{ID: "s3", SnapshotType: "rollback"})
		},
	})

	ctx := context.Background()

	snaps, _, err := c.Snapshots.List(ctx, nil)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("List: err=%v, len=%d", err, len(snaps))
	}

	snap, err := c.Snapshots.Take(ctx, &TakeSnapshotRequest{SnapshotType: "manual"})
	if err != nil || snap.ID != "s2" {
		t.Fatalf("Take: err=%v", err)
	}

	snap, err = c.Snapshots.Get(ctx, "s1")
	if err != nil || snap.SnapshotType != "scheduled" {
		t.Fatalf("Get: err=%v", err)
	}

	chain, err := c.Snapshots.Ancestry(ctx, "s1")
	if err != nil || len(chain) != 2 {
		t.Fatalf("Ancestry: err=%v, len=%d", err, len(chain))
	}

	snap, err = c.Snapshots.Rollback(ctx, "s1")
	if err != nil || snap.SnapshotType != "rollback" {
		t.Fatalf("Rollback: err=%v", err)
	}
}

func TestAPIError(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/entities/missing": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 404, map[string]string{"code": "not_found", "message": "entity not found"})
		},
		"PATCH /api/v1/entities/stale": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 409, map[string]string{"code": "stale_version", "message": "version mismatch"})
		},
	})

	ctx := context.Background()

	_, err := c.Entities.Get(ctx, "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("expected not found, got: %v", err)
	}

	_, err = c.Entities.Update(ctx, "stale", &MutateEntityRequest{ExpectedVersion: 1, Changes: map[string]any{"a": 1}})
	if !IsStaleVersion(err) {
		t.Errorf("expected stale version, got: %v", err)
	}
	if !IsConflict(err) {
		t.Errorf("expected conflict, got: %v", err)
	}
}

func TestAuthAndActorHeaders(t *testing.T) {
	var gotAuth, gotActor, gotName string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotActor = r.Header.Get("X-Actor-Id")
			gotName = r.Header.Get("X-Actor-Name")
			jsonResponse(w, 200, HealthResponse{Status: "ok"})
		},
	})

	c.Health(context.Background()) //nolint:errcheck
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: got %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotActor != "ops-1" {
		t.Errorf("actor header: got %q, want %q", gotActor, "ops-1")
	}
	if gotName != "Test Operator" {
		t.Errorf("actor name header: got %q, want %q", gotName, "Test Operator")
	}
}
