// Package models provides data model definitions for the ListSync core.
package models

// EntityKind identifies which snapshot variant a value carries.
type EntityKind string

const (
	KindItem     EntityKind = "item"
	KindCategory EntityKind = "category"
	KindMealPlan EntityKind = "meal_plan"
)

// Field is a single named field value exposed for diffing.
type Field struct {
	Name  string
	Value interface{}
}

// FieldChange records one field diverging between two snapshots.
type FieldChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
}

// EntitySnapshot is the closed set of entity value types the sync core
// reconciles. Each variant enumerates its diffable fields explicitly so a
// field can never be silently skipped by generic key iteration.
type EntitySnapshot interface {
	EntityID() string
	ListID() string
	Kind() EntityKind
	DisplayName() string
	IsDeleted() bool
	Fields() []Field
}

// ItemSnapshot is one client's view of a shopping list item.
type ItemSnapshot struct {
	ID       UUID    `json:"id"`
	List     UUID    `json:"list_id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	Category UUID    `json:"category_id"`
	Notes    string  `json:"notes"`
	Gotten   bool    `json:"gotten"`
	Deleted  bool    `json:"deleted"`
}

func (s ItemSnapshot) EntityID() string    { return string(s.ID) }
func (s ItemSnapshot) ListID() string      { return string(s.List) }
func (s ItemSnapshot) Kind() EntityKind    { return KindItem }
func (s ItemSnapshot) DisplayName() string { return s.Name }
func (s ItemSnapshot) IsDeleted() bool     { return s.Deleted }

// Fields enumerates every diffable field of an item.
func (s ItemSnapshot) Fields() []Field {
	return []Field{
		{Name: "name", Value: s.Name},
		{Name: "quantity", Value: s.Quantity},
		{Name: "unit", Value: s.Unit},
		{Name: "category", Value: s.Category},
		{Name: "notes", Value: s.Notes},
		{Name: "gotten", Value: s.Gotten},
	}
}

// CategorySnapshot is one client's view of an item category.
type CategorySnapshot struct {
	ID        UUID   `json:"id"`
	List      UUID   `json:"list_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int    `json:"sort_order"`
	Deleted   bool   `json:"deleted"`
}

func (s CategorySnapshot) EntityID() string    { return string(s.ID) }
func (s CategorySnapshot) ListID() string      { return string(s.List) }
func (s CategorySnapshot) Kind() EntityKind    { return KindCategory }
func (s CategorySnapshot) DisplayName() string { return s.Name }
func (s CategorySnapshot) IsDeleted() bool     { return s.Deleted }

// Fields enumerates every diffable field of a category.
func (s CategorySnapshot) Fields() []Field {
	return []Field{
		{Name: "name", Value: s.Name},
		{Name: "color", Value: s.Color},
		{Name: "sort_order", Value: s.SortOrder},
	}
}

// MealPlanSnapshot is one client's view of a meal plan entry.
type MealPlanSnapshot struct {
	ID          UUID     `json:"id"`
	List        UUID     `json:"list_id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"` // YYYY-MM-DD
	Meal        string   `json:"meal"` // breakfast, lunch, dinner
	Servings    int      `json:"servings"`
	Note        string   `json:"note"`
	Ingredients []string `json:"ingredients"`
	Deleted     bool     `json:"deleted"`
}

func (s MealPlanSnapshot) EntityID() string    { return string(s.ID) }
func (s MealPlanSnapshot) ListID() string      { return string(s.List) }
func (s MealPlanSnapshot) Kind() EntityKind    { return KindMealPlan }
func (s MealPlanSnapshot) DisplayName() string { return s.Title }
func (s MealPlanSnapshot) IsDeleted() bool     { return s.Deleted }

// Fields enumerates every diffable field of a meal plan.
// Ingredients is a composite value and compares by deep equality.
func (s MealPlanSnapshot) Fields() []Field {
	return []Field{
		{Name: "title", Value: s.Title},
		{Name: "date", Value: s.Date},
		{Name: "meal", Value: s.Meal},
		{Name: "servings", Value: s.Servings},
		{Name: "note", Value: s.Note},
		{Name: "ingredients", Value: s.Ingredients},
	}
}

// ZeroSnapshot returns the empty snapshot of the given kind carrying only
// identity. Used as a stand-in baseline when the agreed pre-edit value is
// missing.
func ZeroSnapshot(kind EntityKind, entityID, listID string) EntitySnapshot {
	switch kind {
	case KindCategory:
		return CategorySnapshot{ID: UUID(entityID), List: UUID(listID)}
	case KindMealPlan:
		return MealPlanSnapshot{ID: UUID(entityID), List: UUID(listID)}
	default:
		return ItemSnapshot{ID: UUID(entityID), List: UUID(listID)}
	}
}
