package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/backbill/chronicle/internal/api"
	"github.com/backbill/chronicle/internal/models"
)

func TestQueueStats_OK(t *testing.T) {
	t.Parallel()

	repo := &mockQueueRepo{
		statsFn: func(_ context.Context) (*models.QueueStats, error) {
			return &models.QueueStats{Pending: 3, Dead: 1}, nil
		},
	}

	r := newTestRouter()
	h := api.NewQueueHandler(repo, testLogger())
	r.GET("/queue/stats", h.Stats)

	w := doRequest(r, http.MethodGet, "/queue/stats", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats models.QueueStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if stats.Pending != 3 || stats.Dead != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestQueueRetryDead_OK(t *testing.T) {
	t.Parallel()

	repo := &mockQueueRepo{
		retryFn: func(_ context.Context, id int64) (*models.QueueItem, error) {
			return &models.QueueItem{ID: id, Status: models.QueuePending}, nil
		},
	}

	r := newTestRouter()
	h := api.NewQueueHandler(repo, testLogger())
	r.POST("/queue/dead/:id/retry", h.RetryDead)

	w := doRequest(r, http.MethodPost, "/queue/dead/42/retry", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var item models.QueueItem
	if err := json.Unmarshal(w.Body.Bytes(), &item); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if item.Status != models.QueuePending {
		t.Errorf("expected status pending, got %q", item.Status)
	}
}

func TestQueueRetryDead_BadID(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewQueueHandler(&mockQueueRepo{}, testLogger())
	r.POST("/queue/dead/:id/retry", h.RetryDead)

	w := doRequest(r, http.MethodPost, "/queue/dead/abc/retry", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQueueRetryDead_NotFound(t *testing.T) {
	t.Parallel()

	repo := &mockQueueRepo{
		retryFn: func(_ context.Context, _ int64) (*models.QueueItem, error) {
			return nil, models.ErrQueueItemNotFound
		},
	}

	r := newTestRouter()
	h := api.NewQueueHandler(repo, testLogger())
	r.POST("/queue/dead/:id/retry", h.RetryDead)

	w := doRequest(r, http.MethodPost, "/queue/dead/42/retry", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQueueRetryDead_WrongStatus(t *testing.T) {
	t.Parallel()

	repo := &mockQueueRepo{
		retryFn: func(_ context.Context, _ int64) (*models.QueueItem, error) {
			return nil, models.ErrInvalidTransition
		},
	}

	r := newTestRouter()
	h := api.NewQueueHandler(repo, testLogger())
	r.POST("/queue/dead/:id/retry", h.RetryDead)

	w := doRequest(r, http.MethodPost, "/queue/dead/42/retry", "")

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}
