package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kuochun/listsync/internal/sync"
)

// SyncHandler exposes sync status and the manual trigger.
type SyncHandler struct {
	rec *sync.Reconciler
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(rec *sync.Reconciler) *SyncHandler {
	return &SyncHandler{rec: rec}
}

// Status handles GET /api/sync/status
// Returns scheduler state and queue depth for display.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := h.rec.SchedulerStatus()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"state":                   string(status.State),
		"active":                  status.Active,
		"time_until_next_sync_ms": status.TimeUntilNextSync.Milliseconds(),
		"last_sync_at":            status.LastSyncAt,
		"last_cause":              status.LastCause,
		"pending_mutations":       h.rec.PendingMutations(),
	})
}

// TriggerSync handles POST /api/sync/now
// Runs a manual sync cycle immediately.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.rec.TriggerManualSync(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "failed",
			"error":  err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "completed",
	})
}
