package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		old  map[string]any
		new  map[string]any
		want ChangeSet
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  map[string]any{"b": 2, "a": 1},
			want: ChangeSet{
				{Op: OpSet, Path: "a", New: 1},
				{Op: OpSet, Path: "b", New: 2},
			},
		},
		{
			name: "No Changes",
			old:  map[string]any{"a": 1, "nested": map[string]any{"x": true}},
			new:  map[string]any{"a": 1, "nested": map[string]any{"x": true}},
			want: nil,
		},
		{
			name: "Context Added & Modified",
			old:  map[string]any{"a": 1, "b": "old"},
			new:  map[string]any{"a": 1, "b": "new", "c": true},
			want: ChangeSet{
				{Op: OpSet, Path: "b", Old: "old", New: "new"},
				{Op: OpSet, Path: "c", New: true},
			},
		},
		{
			name: "Context Deletion",
			old:  map[string]any{"a": 1, "b": 2},
			new:  map[string]any{"a": 1},
			want: ChangeSet{
				{Op: OpDelete, Path: "b", Old: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Deletions Omit New", func(t *testing.T) {
		diff := Diff(map[string]any{"a": 1, "b": 2}, map[string]any{"a": 1})
		if len(diff) != 1 {
			t.Fatalf("Expected one change, got %v", diff)
		}

		bytes, _ := json.Marshal(diff)
		if !strings.Contains(string(bytes), `"op":"delete"`) {
			t.Errorf("JSON should contain the delete op, got: %s", string(bytes))
		}
		if strings.Contains(string(bytes), `"new"`) {
			t.Errorf("JSON should not contain 'new' for a deletion, got: %s", string(bytes))
		}
	})
}
