// Package main provides the local ListSync daemon. Clients on the same
// machine talk REST/WebSocket on localhost; the daemon owns the mutation
// queue, conflict state, and the periodic sync schedule.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuochun/listsync/cmd/listsyncd/handlers"
	"github.com/kuochun/listsync/internal/db"
	"github.com/kuochun/listsync/internal/logging"
	"github.com/kuochun/listsync/internal/sync"
	"github.com/kuochun/listsync/internal/sync/conflict"
	"github.com/kuochun/listsync/internal/sync/queue"
)

func main() {
	var (
		port         = flag.String("port", "8090", "listen port (localhost only)")
		dataDir      = flag.String("data-dir", defaultDataDir(), "data directory")
		syncInterval = flag.Duration("sync-interval", 5*time.Minute, "periodic sync interval")
		logLevel     = flag.String("log-level", "INFO", "minimum log level (DEBUG, INFO, WARN, ERROR)")
		userID       = flag.String("user-id", "local", "local user id for conflict attribution")
		userName     = flag.String("user-name", "You", "local user display name")
	)
	flag.Parse()

	logging.Init(os.Stdout, logging.LogLevel(*logLevel))
	logging.Info("ListSync daemon starting",
		map[string]interface{}{"port": *port, "data_dir": *dataDir})

	database, err := db.Open(*dataDir)
	if err != nil {
		logging.Error("Failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Up(); err != nil {
		logging.Error("Failed to run migrations", err, nil)
		os.Exit(1)
	}

	store := db.NewStore(database)
	hub := NewWSHub()

	rec := sync.NewReconciler(sync.Config{
		Identity:     conflict.Identity{UserID: *userID, UserName: *userName},
		Transport:    standaloneTransport{},
		Store:        store,
		Records:      store,
		Events:       hub,
		SyncInterval: *syncInterval,
	})

	if err := rec.Restore(); err != nil {
		logging.Error("Failed to restore mutation queue", err, nil)
		os.Exit(1)
	}

	rec.Start()
	defer rec.Stop()

	conflictHandler := handlers.NewConflictHandler(rec)
	syncHandler := handlers.NewSyncHandler(rec)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", handleHealth)
	mux.HandleFunc("/api/conflicts", conflictHandler.List)
	mux.HandleFunc("/api/conflicts/resolve", conflictHandler.Resolve)
	mux.HandleFunc("/api/conflicts/dismiss", conflictHandler.Dismiss)
	mux.HandleFunc("/api/sync/status", syncHandler.Status)
	mux.HandleFunc("/api/sync/now", syncHandler.TriggerSync)
	mux.HandleFunc("/ws", HandleWebSocket(hub))

	server := &http.Server{
		Addr:    "localhost:" + *port,
		Handler: mux,
	}

	go func() {
		logging.Info("Listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Server failed", err, nil)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", err, nil)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"listsyncd"}`))
}

func defaultDataDir() string {
	if dir := os.Getenv("LISTSYNC_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// standaloneTransport runs the daemon without a sync backend: pushes are
// accepted locally and no remote versions ever arrive. A real backend
// replaces this by implementing sync.Transport.
type standaloneTransport struct{}

func (standaloneTransport) Push(ctx context.Context, mutations []*queue.QueuedMutation) error {
	return nil
}

func (standaloneTransport) Pull(ctx context.Context) ([]sync.RemoteUpdate, error) {
	return nil, nil
}

func (standaloneTransport) SupportsPeriodicSync() bool { return false }
