// Package handlers provides REST API handlers for the local reconciliation
// surface.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync"
	"github.com/kuochun/listsync/internal/sync/conflict"
)

// ConflictHandler exposes the active conflict set and resolution actions.
type ConflictHandler struct {
	rec *sync.Reconciler
}

// NewConflictHandler creates a ConflictHandler.
func NewConflictHandler(rec *sync.Reconciler) *ConflictHandler {
	return &ConflictHandler{rec: rec}
}

// conflictView is the JSON shape of one notification.
type conflictView struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	ItemID         string      `json:"item_id"`
	ItemName       string      `json:"item_name"`
	ListID         string      `json:"list_id"`
	Priority       int         `json:"priority"`
	AutoResolvable bool        `json:"auto_resolvable"`
	Timestamp      int64       `json:"timestamp"`
	Local          versionView `json:"local"`
	Remote         versionView `json:"remote"`
	CountdownLeft  int         `json:"countdown_left"` // -1 = persistent
}

type versionView struct {
	UserName  string               `json:"user_name"`
	Timestamp int64                `json:"timestamp"`
	Changes   []models.FieldChange `json:"changes"`
}

// List handles GET /api/conflicts
// Returns visible notifications in display order plus the overflow count.
func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	visible, hidden := h.rec.ActiveConflictsSorted()

	views := make([]conflictView, 0, len(visible))
	for _, c := range visible {
		views = append(views, conflictView{
			ID:             c.ID,
			Type:           string(c.Type),
			ItemID:         c.ItemID,
			ItemName:       c.ItemName,
			ListID:         c.ListID,
			Priority:       c.Priority,
			AutoResolvable: c.AutoResolvable,
			Timestamp:      c.Timestamp,
			Local: versionView{
				UserName:  c.LocalVersion.UserName,
				Timestamp: c.LocalVersion.Timestamp,
				Changes:   c.LocalVersion.Changes,
			},
			Remote: versionView{
				UserName:  c.RemoteVersion.UserName,
				Timestamp: c.RemoteVersion.Timestamp,
				Changes:   c.RemoteVersion.Changes,
			},
			CountdownLeft: h.rec.Notifications().Remaining(c.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conflicts": views,
		"hidden":    hidden,
	})
}

// Resolve handles POST /api/conflicts/resolve
// Applies a resolution strategy to an active conflict.
func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ConflictID string `json:"conflict_id"`
		Strategy   string `json:"strategy"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.ConflictID == "" {
		http.Error(w, "conflict_id is required", http.StatusBadRequest)
		return
	}

	switch request.Strategy {
	case models.StrategyMine, models.StrategyTheirs, models.StrategyManual:
	default:
		http.Error(w, "strategy must be one of: mine, theirs, manual", http.StatusBadRequest)
		return
	}

	h.rec.Resolve(request.ConflictID, conflict.Strategy(request.Strategy))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "accepted",
	})
}

// Dismiss handles POST /api/conflicts/dismiss
// Drops a conflict's notification without resolving it.
func (h *ConflictHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		ConflictID string `json:"conflict_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.ConflictID == "" {
		http.Error(w, "conflict_id is required", http.StatusBadRequest)
		return
	}

	h.rec.Dismiss(request.ConflictID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "accepted",
	})
}
