package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kuochun/listsync/internal/clock"
	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync"
	"github.com/kuochun/listsync/internal/sync/conflict"
	"github.com/kuochun/listsync/internal/sync/queue"
)

// stubTransport is an always-reachable transport with nothing to pull.
type stubTransport struct{}

func (stubTransport) Push(ctx context.Context, mutations []*queue.QueuedMutation) error {
	return nil
}

func (stubTransport) Pull(ctx context.Context) ([]sync.RemoteUpdate, error) {
	return nil, nil
}

func (stubTransport) SupportsPeriodicSync() bool { return false }

func newTestReconciler() *sync.Reconciler {
	return sync.NewReconciler(sync.Config{
		Identity:  conflict.Identity{UserID: "user-local", UserName: "Alice"},
		Transport: stubTransport{},
		Clock:     clock.NewManual(time.UnixMilli(10000)),
	})
}

func addConflict(rec *sync.Reconciler) string {
	base := models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 1}
	local := base
	local.Quantity = 2
	remote := base
	remote.Quantity = 3

	rec.Enqueue(local, base)
	rec.OnRemoteUpdate(remote, conflict.RemoteMeta{
		UserID: "user-remote", UserName: "Bob", Timestamp: 10500,
	})

	visible, _ := rec.ActiveConflictsSorted()
	return visible[0].ID
}

// TestListConflicts tests GET /api/conflicts.
func TestListConflicts(t *testing.T) {
	rec := newTestReconciler()
	addConflict(rec)
	h := NewConflictHandler(rec)

	req := httptest.NewRequest(http.MethodGet, "/api/conflicts", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var response struct {
		Conflicts []conflictView `json:"conflicts"`
		Hidden    int            `json:"hidden"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(response.Conflicts) != 1 || response.Hidden != 0 {
		t.Fatalf("Expected 1 conflict, got %d (+%d hidden)",
			len(response.Conflicts), response.Hidden)
	}

	c := response.Conflicts[0]
	if c.Type != "concurrent_edit" {
		t.Errorf("Expected concurrent_edit, got %s", c.Type)
	}
	if c.ItemName != "Milk" {
		t.Errorf("Expected item name Milk, got %q", c.ItemName)
	}
	if c.Local.UserName != "Alice" || c.Remote.UserName != "Bob" {
		t.Errorf("Expected Alice/Bob attribution, got %s/%s",
			c.Local.UserName, c.Remote.UserName)
	}
	if c.CountdownLeft != -1 {
		t.Errorf("Expected persistent conflict (countdown -1), got %d", c.CountdownLeft)
	}
}

// TestListConflictsMethodNotAllowed tests the method gate.
func TestListConflictsMethodNotAllowed(t *testing.T) {
	h := NewConflictHandler(newTestReconciler())

	req := httptest.NewRequest(http.MethodPost, "/api/conflicts", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

// TestResolveConflict tests POST /api/conflicts/resolve.
func TestResolveConflict(t *testing.T) {
	rec := newTestReconciler()
	id := addConflict(rec)
	h := NewConflictHandler(rec)

	body := `{"conflict_id":"` + id + `","strategy":"theirs"}`
	req := httptest.NewRequest(http.MethodPost, "/api/conflicts/resolve", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Resolve(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if visible, _ := rec.ActiveConflictsSorted(); len(visible) != 0 {
		t.Errorf("Expected conflict resolved, %d still active", len(visible))
	}
	if rec.PendingMutations() != 0 {
		t.Errorf("Expected local mutation dropped, %d pending", rec.PendingMutations())
	}
}

// TestResolveValidation tests request validation.
func TestResolveValidation(t *testing.T) {
	h := NewConflictHandler(newTestReconciler())

	cases := []struct {
		name string
		body string
	}{
		{"BadJSON", `{`},
		{"MissingID", `{"strategy":"mine"}`},
		{"BadStrategy", `{"conflict_id":"conf-1","strategy":"coin_flip"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/conflicts/resolve",
				strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			h.Resolve(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

// TestDismissConflict tests POST /api/conflicts/dismiss.
func TestDismissConflict(t *testing.T) {
	rec := newTestReconciler()
	id := addConflict(rec)
	h := NewConflictHandler(rec)

	body := `{"conflict_id":"` + id + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/conflicts/dismiss", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Dismiss(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	if visible, _ := rec.ActiveConflictsSorted(); len(visible) != 0 {
		t.Errorf("Expected conflict dismissed, %d still active", len(visible))
	}
	// Dismissal keeps the local mutation queued.
	if rec.PendingMutations() != 1 {
		t.Errorf("Expected mutation to survive dismissal, got %d", rec.PendingMutations())
	}
}

// TestSyncStatus tests GET /api/sync/status.
func TestSyncStatus(t *testing.T) {
	rec := newTestReconciler()
	rec.Enqueue(
		models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 2},
		models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 1},
	)
	h := NewSyncHandler(rec)

	req := httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	w := httptest.NewRecorder()
	h.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["state"] != "inactive" {
		t.Errorf("Expected inactive scheduler before start, got %v", response["state"])
	}
	if response["pending_mutations"].(float64) != 1 {
		t.Errorf("Expected 1 pending mutation, got %v", response["pending_mutations"])
	}
}

// TestTriggerSync tests POST /api/sync/now.
func TestTriggerSync(t *testing.T) {
	rec := newTestReconciler()
	rec.Enqueue(
		models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 2},
		models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 1},
	)
	h := NewSyncHandler(rec)

	req := httptest.NewRequest(http.MethodPost, "/api/sync/now", nil)
	w := httptest.NewRecorder()
	h.TriggerSync(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if rec.PendingMutations() != 0 {
		t.Errorf("Expected queue drained after sync, got %d", rec.PendingMutations())
	}
}
