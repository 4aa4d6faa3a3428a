// Tests for daemon wiring: routes, health check, and the sqlite-backed
// reconciler assembly main() performs.
package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/kuochun/listsync/cmd/listsyncd/handlers"
	"github.com/kuochun/listsync/internal/db"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync"
	"github.com/kuochun/listsync/internal/sync/conflict"
)

func init() {
	logging.Init(os.Stdout, logging.LevelError)
}

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Health check returned status %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", w.Header().Get("Content-Type"))
	}

	expectedBody := `{"status":"ok","service":"listsyncd"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %q, got %q", expectedBody, w.Body.String())
	}
}

func TestHealthCheck_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	handleHealth(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

// TestDaemonAssembly tests the same wiring main() performs: sqlite store,
// migrations, reconciler, handlers, and that queued state survives a
// rebuild of the stack.
func TestDaemonAssembly(t *testing.T) {
	dataDir := t.TempDir()

	build := func() (*sync.Reconciler, func()) {
		database, err := db.Open(dataDir)
		if err != nil {
			t.Fatalf("Failed to open test database: %v", err)
		}

		migrator := db.NewMigrator(database.DB)
		if err := migrator.Up(); err != nil {
			t.Fatalf("Failed to apply migrations: %v", err)
		}

		store := db.NewStore(database)
		rec := sync.NewReconciler(sync.Config{
			Identity:  conflict.Identity{UserID: "local", UserName: "You"},
			Transport: standaloneTransport{},
			Store:     store,
			Records:   store,
		})
		if err := rec.Restore(); err != nil {
			t.Fatalf("Failed to restore queue: %v", err)
		}

		return rec, func() { database.Close() }
	}

	rec, closeDB := build()
	rec.Enqueue(
		models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 2},
		models.ItemSnapshot{ID: "item-1", List: "list-1", Name: "Milk", Quantity: 1},
	)
	closeDB()

	// Simulate daemon restart.
	rec, closeDB = build()
	defer closeDB()

	if rec.PendingMutations() != 1 {
		t.Fatalf("Expected 1 restored mutation, got %d", rec.PendingMutations())
	}
}

// TestRouteSetup tests handler registration over the real mux shape.
func TestRouteSetup(t *testing.T) {
	rec := sync.NewReconciler(sync.Config{
		Identity:  conflict.Identity{UserID: "local", UserName: "You"},
		Transport: standaloneTransport{},
	})

	conflictHandler := handlers.NewConflictHandler(rec)
	syncHandler := handlers.NewSyncHandler(rec)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", handleHealth)
	mux.HandleFunc("/api/conflicts", conflictHandler.List)
	mux.HandleFunc("/api/sync/status", syncHandler.Status)

	for _, path := range []string{"/api/health", "/api/conflicts", "/api/sync/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("%s returned status %d", path, w.Code)
		}
	}
}

// TestStandaloneTransport tests the no-backend transport contract.
func TestStandaloneTransport(t *testing.T) {
	tr := standaloneTransport{}

	if err := tr.Push(context.Background(), nil); err != nil {
		t.Errorf("Expected push to succeed, got %v", err)
	}
	updates, err := tr.Pull(context.Background())
	if err != nil || len(updates) != 0 {
		t.Errorf("Expected empty pull, got %v / %v", updates, err)
	}
	if tr.SupportsPeriodicSync() {
		t.Error("Expected no periodic capability without a backend")
	}
}
