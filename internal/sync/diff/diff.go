// Package diff computes field-level changes between entity snapshots.
package diff

import (
	"reflect"

	"github.com/kuochun/listsync/internal/models"
)

// Diff returns the set of fields whose values differ between two snapshots
// of the same entity. Pure and total: it never fails and has no side
// effects. A nil before yields creation changes, a nil after deletion
// changes. Field order follows the variant's declared order.
func Diff(before, after models.EntitySnapshot) []models.FieldChange {
	if before == nil && after == nil {
		return nil
	}

	beforeFields := fieldMap(before)
	afterFields := fieldMap(after)

	var changes []models.FieldChange
	for _, name := range fieldOrder(before, after) {
		oldValue, hadOld := beforeFields[name]
		newValue, hadNew := afterFields[name]

		if hadOld && hadNew && valuesEqual(oldValue, newValue) {
			continue
		}
		if !hadOld && !hadNew {
			continue
		}

		changes = append(changes, models.FieldChange{
			Field:    name,
			OldValue: oldValue,
			NewValue: newValue,
		})
	}

	return changes
}

// ChangedFields returns just the names from a change set.
func ChangedFields(changes []models.FieldChange) []string {
	names := make([]string, 0, len(changes))
	for _, c := range changes {
		names = append(names, c.Field)
	}
	return names
}

// Overlap reports whether two change sets touch at least one common field.
func Overlap(a, b []models.FieldChange) bool {
	seen := make(map[string]bool, len(a))
	for _, c := range a {
		seen[c.Field] = true
	}
	for _, c := range b {
		if seen[c.Field] {
			return true
		}
	}
	return false
}

// fieldOrder walks the union of field names in declaration order, before's
// fields first. Snapshots of the same kind share a field list, so the union
// only widens across kinds, which Detect already rejects.
func fieldOrder(before, after models.EntitySnapshot) []string {
	var order []string
	seen := make(map[string]bool)

	for _, snap := range []models.EntitySnapshot{before, after} {
		if snap == nil {
			continue
		}
		for _, f := range snap.Fields() {
			if !seen[f.Name] {
				seen[f.Name] = true
				order = append(order, f.Name)
			}
		}
	}

	return order
}

func fieldMap(snap models.EntitySnapshot) map[string]interface{} {
	if snap == nil {
		return nil
	}
	m := make(map[string]interface{})
	for _, f := range snap.Fields() {
		m[f.Name] = f.Value
	}
	return m
}

// valuesEqual compares primitives with == and composite values (slices,
// maps) by deep equality.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}

	ka := reflect.TypeOf(a).Kind()
	if ka == reflect.Slice || ka == reflect.Map || ka == reflect.Ptr || ka == reflect.Struct {
		return reflect.DeepEqual(a, b)
	}

	return a == b
}
