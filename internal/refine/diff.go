package refine

import (
	"reflect"

	"schemaforge/internal/domain"
)

// Diff returns the names of columns whose definition differs between the two
// schemas, in the revised schema's order. Added and renamed columns appear
// under their new name; removed columns under their old one, appended last.
func Diff(before, after *domain.Schema) []string {
	beforeByName := make(map[string]*domain.SchemaColumn, len(before.Columns))
	for i := range before.Columns {
		beforeByName[before.Columns[i].Name] = &before.Columns[i]
	}

	changed := []string{}
	seen := make(map[string]bool, len(after.Columns))
	for i := range after.Columns {
		c := &after.Columns[i]
		seen[c.Name] = true
		prev, ok := beforeByName[c.Name]
		if !ok || !columnsEqual(prev, c) {
			changed = append(changed, c.Name)
		}
	}
	for i := range before.Columns {
		if !seen[before.Columns[i].Name] {
			changed = append(changed, before.Columns[i].Name)
		}
	}
	return changed
}

func columnsEqual(a, b *domain.SchemaColumn) bool {
	if a.Type != b.Type || a.Format != b.Format || a.Description != b.Description || a.Nullable != b.Nullable {
		return false
	}
	if !constraintsEqual(a.Constraints, b.Constraints) {
		return false
	}
	switch {
	case a.Confidence == nil && b.Confidence == nil:
		return true
	case a.Confidence == nil || b.Confidence == nil:
		return false
	default:
		return *a.Confidence == *b.Confidence
	}
}

func constraintsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
