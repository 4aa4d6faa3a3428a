package models

import (
	"reflect"
	"testing"
)

// TestSnapshotRoundTrip tests that each snapshot variant survives the
// kind-tagged envelope.
func TestSnapshotRoundTrip(t *testing.T) {
	snapshots := []EntitySnapshot{
		ItemSnapshot{
			ID:       "item-1",
			List:     "list-1",
			Name:     "Milk",
			Quantity: 2,
			Unit:     "l",
			Category: "cat-1",
			Gotten:   true,
		},
		CategorySnapshot{
			ID:        "cat-1",
			List:      "list-1",
			Name:      "Dairy",
			Color:     "#ffcc00",
			SortOrder: 3,
		},
		MealPlanSnapshot{
			ID:          "meal-1",
			List:        "list-1",
			Title:       "Pasta night",
			Date:        "2026-03-02",
			Meal:        "dinner",
			Servings:    4,
			Ingredients: []string{"pasta", "tomatoes"},
		},
	}

	for _, snap := range snapshots {
		data, err := MarshalSnapshot(snap)
		if err != nil {
			t.Fatalf("MarshalSnapshot(%s) failed: %v", snap.Kind(), err)
		}

		got, err := UnmarshalSnapshot(data)
		if err != nil {
			t.Fatalf("UnmarshalSnapshot(%s) failed: %v", snap.Kind(), err)
		}

		if !reflect.DeepEqual(got, snap) {
			t.Errorf("round trip mismatch for %s: got %+v, want %+v", snap.Kind(), got, snap)
		}
	}
}

// TestUnmarshalSnapshotUnknownKind tests rejection of unknown variants.
func TestUnmarshalSnapshotUnknownKind(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte(`{"kind":"recipe","data":{}}`))
	if err == nil {
		t.Error("Expected error for unknown snapshot kind")
	}
}

// TestUnmarshalSnapshotEmpty tests that empty input yields a nil snapshot.
func TestUnmarshalSnapshotEmpty(t *testing.T) {
	snap, err := UnmarshalSnapshot(nil)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot(nil) failed: %v", err)
	}
	if snap != nil {
		t.Errorf("Expected nil snapshot, got %+v", snap)
	}
}

// TestFieldsCoverVariants tests that every variant reports its field set.
func TestFieldsCoverVariants(t *testing.T) {
	tests := []struct {
		name string
		snap EntitySnapshot
		want []string
	}{
		{"item", ItemSnapshot{}, []string{"name", "quantity", "unit", "category", "notes", "gotten"}},
		{"category", CategorySnapshot{}, []string{"name", "color", "sort_order"}},
		{"meal_plan", MealPlanSnapshot{}, []string{"title", "date", "meal", "servings", "note", "ingredients"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := tt.snap.Fields()
			if len(fields) != len(tt.want) {
				t.Fatalf("Expected %d fields, got %d", len(tt.want), len(fields))
			}
			for i, f := range fields {
				if f.Name != tt.want[i] {
					t.Errorf("Field %d: expected %s, got %s", i, tt.want[i], f.Name)
				}
			}
		})
	}
}

// TestZeroSnapshot tests identity-only baselines per kind.
func TestZeroSnapshot(t *testing.T) {
	for _, kind := range []EntityKind{KindItem, KindCategory, KindMealPlan} {
		snap := ZeroSnapshot(kind, "e-1", "l-1")
		if snap.Kind() != kind {
			t.Errorf("Expected kind %s, got %s", kind, snap.Kind())
		}
		if snap.EntityID() != "e-1" {
			t.Errorf("Expected entity id e-1, got %s", snap.EntityID())
		}
		if snap.ListID() != "l-1" {
			t.Errorf("Expected list id l-1, got %s", snap.ListID())
		}
		if snap.IsDeleted() {
			t.Errorf("Zero snapshot of %s should not be deleted", kind)
		}
	}
}
