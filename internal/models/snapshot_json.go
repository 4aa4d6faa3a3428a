package models

import (
	"encoding/json"
	"fmt"
)

// snapshotEnvelope tags a serialized snapshot with its variant so it can be
// decoded back into the correct concrete type.
type snapshotEnvelope struct {
	Kind EntityKind      `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalSnapshot serializes a snapshot with its kind tag.
func MarshalSnapshot(s EntitySnapshot) ([]byte, error) {
	if s == nil {
		return nil, nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s snapshot: %w", s.Kind(), err)
	}

	return json.Marshal(snapshotEnvelope{Kind: s.Kind(), Data: data})
}

// UnmarshalSnapshot decodes a kind-tagged snapshot produced by
// MarshalSnapshot. An empty input yields a nil snapshot.
func UnmarshalSnapshot(b []byte) (EntitySnapshot, error) {
	if len(b) == 0 {
		return nil, nil
	}

	var env snapshotEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot envelope: %w", err)
	}

	switch env.Kind {
	case KindItem:
		var s ItemSnapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item snapshot: %w", err)
		}
		return s, nil
	case KindCategory:
		var s CategorySnapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category snapshot: %w", err)
		}
		return s, nil
	case KindMealPlan:
		var s MealPlanSnapshot
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meal plan snapshot: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown snapshot kind: %q", env.Kind)
	}
}
