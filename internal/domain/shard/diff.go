package shard

import "reflect"

// FieldChange records the before/after values of a changed field
type FieldChange struct {
	From interface{} `json:"from"`
	To   interface{} `json:"to"`
}

// Diff is a structural comparison of two shard snapshots over the
// top-level fields of their structured data, plus the status transition.
type Diff struct {
	Added   map[string]interface{} `json:"added,omitempty"`
	Removed map[string]interface{} `json:"removed,omitempty"`
	Changed map[string]FieldChange `json:"changed,omitempty"`
	Status  *FieldChange           `json:"status,omitempty"`
}

// IsEmpty reports whether the diff contains no changes
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0 && d.Status == nil
}

// CompareSnapshots computes the structural diff from snapshot a to
// snapshot b. It is a pure function with no side effects.
func CompareSnapshots(a, b Snapshot) Diff {
	diff := Diff{
		Added:   make(map[string]interface{}),
		Removed: make(map[string]interface{}),
		Changed: make(map[string]FieldChange),
	}

	for key, newVal := range b.StructuredData {
		oldVal, exists := a.StructuredData[key]
		if !exists {
			diff.Added[key] = newVal
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			diff.Changed[key] = FieldChange{From: oldVal, To: newVal}
		}
	}

	for key, oldVal := range a.StructuredData {
		if _, exists := b.StructuredData[key]; !exists {
			diff.Removed[key] = oldVal
		}
	}

	if a.Status != b.Status {
		diff.Status = &FieldChange{From: string(a.Status), To: string(b.Status)}
	}

	return diff
}

// DiffFromEmpty computes the diff representing a shard's creation
func DiffFromEmpty(s Snapshot) Diff {
	return CompareSnapshots(Snapshot{StructuredData: map[string]interface{}{}, Status: s.Status}, s)
}
