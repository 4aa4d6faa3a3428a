package conflict

import (
	"testing"

	"github.com/kuochun/listsync/internal/models"
	"github.com/kuochun/listsync/internal/sync/queue"
)

var testIdentity = Identity{UserID: "user-local", UserName: "Alice"}

func remoteMeta(ts int64) RemoteMeta {
	return RemoteMeta{UserID: "user-remote", UserName: "Bob", Timestamp: ts}
}

func item(name string, qty float64) models.ItemSnapshot {
	return models.ItemSnapshot{
		ID:       "item-1",
		List:     "list-1",
		Name:     name,
		Quantity: qty,
	}
}

func queuedMutation(payload, baseline models.EntitySnapshot, enqueuedAt int64) *queue.QueuedMutation {
	return &queue.QueuedMutation{
		EntityID:   payload.EntityID(),
		ListID:     payload.ListID(),
		Payload:    payload,
		Baseline:   baseline,
		EnqueuedAt: enqueuedAt,
	}
}

// TestDetectDisjointEdits tests that edits touching different fields
// classify as edit/edit and are auto-resolvable.
func TestDetectDisjointEdits(t *testing.T) {
	d := NewDetector(testIdentity)

	base := item("Milk", 1)
	local := base
	local.Notes = "semi-skimmed"
	remote := base
	remote.Category = "Dairy"

	c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000))
	if c == nil {
		t.Fatal("Expected a conflict")
	}
	if c.Type != TypeEditEdit {
		t.Errorf("Expected edit_edit, got %s", c.Type)
	}
	if !c.AutoResolvable {
		t.Error("Expected disjoint edits to be auto-resolvable")
	}
	if c.Priority != PriorityDefault {
		t.Errorf("Expected priority %d, got %d", PriorityDefault, c.Priority)
	}
}

// TestDetectOverlappingEdits tests that edits touching a common field
// classify as concurrent_edit.
func TestDetectOverlappingEdits(t *testing.T) {
	d := NewDetector(testIdentity)

	base := item("Milk", 1)
	local := item("Milk", 2)
	remote := item("Milk", 3)

	c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(1500))
	if c == nil {
		t.Fatal("Expected a conflict")
	}
	if c.Type != TypeConcurrentEdit {
		t.Errorf("Expected concurrent_edit, got %s", c.Type)
	}
	if c.AutoResolvable {
		t.Error("Expected concurrent edit to require a decision")
	}
}

// TestDetectDeleteEdit tests delete-versus-edit classification in both
// directions, including pure deletions with no field changes.
func TestDetectDeleteEdit(t *testing.T) {
	d := NewDetector(testIdentity)
	base := item("Milk", 1)

	t.Run("LocalDeletes", func(t *testing.T) {
		local := base
		local.Deleted = true
		remote := item("Milk", 2)

		c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000))
		if c == nil {
			t.Fatal("Expected a conflict")
		}
		if c.Type != TypeDeleteEdit {
			t.Errorf("Expected delete_edit, got %s", c.Type)
		}
		if c.Priority != PriorityDeleteEdit {
			t.Errorf("Expected priority %d, got %d", PriorityDeleteEdit, c.Priority)
		}
		if c.AutoResolvable {
			t.Error("Expected delete/edit to require a decision")
		}
	})

	t.Run("RemoteDeletes", func(t *testing.T) {
		local := item("Oat milk", 1)
		remote := base
		remote.Deleted = true

		c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000))
		if c == nil {
			t.Fatal("Expected a conflict")
		}
		if c.Type != TypeDeleteEdit {
			t.Errorf("Expected delete_edit, got %s", c.Type)
		}
	})

	t.Run("BothDelete", func(t *testing.T) {
		local := base
		local.Deleted = true
		remote := base
		remote.Deleted = true

		if c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000)); c != nil {
			t.Errorf("Expected no conflict when both sides delete, got %s", c.Type)
		}
	})
}

// TestDetectPriorityBuckets tests concurrent-edit priority by timestamp
// proximity.
func TestDetectPriorityBuckets(t *testing.T) {
	d := NewDetector(testIdentity)
	base := item("Milk", 1)

	cases := []struct {
		name     string
		localAt  int64
		remoteAt int64
		wantPrio int
	}{
		{"NearSimultaneous", 1000, 1500, PriorityNearSimul},
		{"WithinFiveSeconds", 1000, 4000, PriorityRecent},
		{"FarApart", 1000, 60000, PriorityDefault},
		{"RemoteFirst", 4000, 1000, PriorityRecent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := item("Milk", 2)
			remote := item("Milk", 3)

			c := d.Detect(queuedMutation(local, base, tc.localAt), remote, remoteMeta(tc.remoteAt))
			if c == nil {
				t.Fatal("Expected a conflict")
			}
			if c.Priority != tc.wantPrio {
				t.Errorf("Expected priority %d, got %d", tc.wantPrio, c.Priority)
			}
		})
	}
}

// TestDetectQuantityScenario tests the two-device shopping scenario: one
// side bumps the quantity, the other bumps it differently and marks the
// item gotten three seconds later.
func TestDetectQuantityScenario(t *testing.T) {
	d := NewDetector(testIdentity)

	base := item("Milk", 1)
	local := item("Milk", 2)
	remote := item("Milk", 3)
	remote.Gotten = true

	c := d.Detect(queuedMutation(local, base, 10000), remote, remoteMeta(13000))
	if c == nil {
		t.Fatal("Expected a conflict")
	}
	if c.Type != TypeConcurrentEdit {
		t.Errorf("Expected concurrent_edit, got %s", c.Type)
	}
	if c.Priority != PriorityRecent {
		t.Errorf("Expected priority %d, got %d", PriorityRecent, c.Priority)
	}
	if c.ItemName != "Milk" {
		t.Errorf("Expected item name Milk, got %q", c.ItemName)
	}
	if len(c.RemoteVersion.Changes) != 2 {
		t.Errorf("Expected 2 remote field changes, got %d", len(c.RemoteVersion.Changes))
	}
}

// TestDetectMissingBaseline tests the conservative path when the queued
// mutation carries no baseline.
func TestDetectMissingBaseline(t *testing.T) {
	d := NewDetector(testIdentity)

	local := item("Milk", 2)
	local.Notes = "semi-skimmed"
	remote := item("Milk", 2)
	remote.Category = "Dairy"

	c := d.Detect(queuedMutation(local, nil, 1000), remote, remoteMeta(60000))
	if c == nil {
		t.Fatal("Expected a conflict despite missing baseline")
	}
	// Without a baseline the disjointness of the edits cannot be trusted.
	if c.Type != TypeConcurrentEdit {
		t.Errorf("Expected conservative concurrent_edit, got %s", c.Type)
	}
	if c.AutoResolvable {
		t.Error("Expected ambiguous conflict to require a decision")
	}
}

// TestDetectNoDivergence tests the cases where detection yields nothing.
func TestDetectNoDivergence(t *testing.T) {
	d := NewDetector(testIdentity)
	base := item("Milk", 1)

	t.Run("NilInputs", func(t *testing.T) {
		if d.Detect(nil, item("Milk", 2), remoteMeta(1000)) != nil {
			t.Error("Expected nil for nil local mutation")
		}
		if d.Detect(queuedMutation(item("Milk", 2), base, 1000), nil, remoteMeta(1000)) != nil {
			t.Error("Expected nil for nil remote snapshot")
		}
	})

	t.Run("RemoteUnchanged", func(t *testing.T) {
		local := item("Milk", 2)
		if c := d.Detect(queuedMutation(local, base, 1000), base, remoteMeta(2000)); c != nil {
			t.Errorf("Expected no conflict when remote equals baseline, got %s", c.Type)
		}
	})

	t.Run("LocalUnchanged", func(t *testing.T) {
		remote := item("Milk", 3)
		if c := d.Detect(queuedMutation(base, base, 1000), remote, remoteMeta(2000)); c != nil {
			t.Errorf("Expected no conflict when local equals baseline, got %s", c.Type)
		}
	})

	t.Run("ConvergentEdits", func(t *testing.T) {
		local := item("Oat milk", 1)
		remote := item("Oat milk", 1)
		if c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000)); c != nil {
			t.Errorf("Expected no conflict for identical end states, got %s", c.Type)
		}
	})
}

// TestDetectDeterministicID tests that re-detection of the same inputs
// produces the same conflict id, and different inputs do not.
func TestDetectDeterministicID(t *testing.T) {
	d := NewDetector(testIdentity)

	base := item("Milk", 1)
	local := item("Milk", 2)
	remote := item("Milk", 3)

	c1 := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000))
	c2 := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(2000))
	if c1.ID != c2.ID {
		t.Errorf("Expected identical ids for identical inputs, got %s and %s", c1.ID, c2.ID)
	}

	c3 := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(3000))
	if c1.ID == c3.ID {
		t.Error("Expected different ids for different remote timestamps")
	}
}

// TestDetectTimestamps tests that the conflict timestamp is the later of
// the two versions and both versions carry attribution.
func TestDetectTimestamps(t *testing.T) {
	d := NewDetector(testIdentity)

	base := item("Milk", 1)
	local := item("Milk", 2)
	remote := item("Milk", 3)

	c := d.Detect(queuedMutation(local, base, 5000), remote, remoteMeta(2000))
	if c.Timestamp != 5000 {
		t.Errorf("Expected conflict timestamp 5000, got %d", c.Timestamp)
	}
	if c.LocalVersion.UserName != "Alice" || c.RemoteVersion.UserName != "Bob" {
		t.Errorf("Expected attribution Alice/Bob, got %s/%s",
			c.LocalVersion.UserName, c.RemoteVersion.UserName)
	}
}

// TestDetectCategorySnapshot tests detection over a non-item entity kind.
func TestDetectCategorySnapshot(t *testing.T) {
	d := NewDetector(testIdentity)

	base := models.CategorySnapshot{ID: "cat-1", List: "list-1", Name: "Produce", Color: "#00ff00"}
	local := base
	local.Color = "#00cc00"
	remote := base
	remote.Color = "#22ff22"

	c := d.Detect(queuedMutation(local, base, 1000), remote, remoteMeta(1200))
	if c == nil {
		t.Fatal("Expected a conflict")
	}
	if c.Type != TypeConcurrentEdit {
		t.Errorf("Expected concurrent_edit, got %s", c.Type)
	}
	if c.ItemName != "Produce" {
		t.Errorf("Expected item name Produce, got %q", c.ItemName)
	}
}
