package domain

import (
	"reflect"
	"sort"
)

// Diff calculates the top-level changes between two context snapshots.
// If old is nil, every key of new is reported as set (initial load).
// Changes are ordered by key so the result is deterministic.
func Diff(old, new map[string]any) ChangeSet {
	keys := make(map[string]struct{}, len(old)+len(new))
	for k := range old {
		keys[k] = struct{}{}
	}
	for k := range new {
		keys[k] = struct{}{}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var changes ChangeSet
	for _, k := range sorted {
		oldVal, inOld := old[k]
		newVal, inNew := new[k]
		switch {
		case inNew && !inOld:
			changes = append(changes, Change{Op: OpSet, Path: k, New: newVal})
		case inNew && !reflect.DeepEqual(oldVal, newVal):
			changes = append(changes, Change{Op: OpSet, Path: k, Old: oldVal, New: newVal})
		case !inNew:
			changes = append(changes, Change{Op: OpDelete, Path: k, Old: oldVal})
		}
	}
	return changes
}
