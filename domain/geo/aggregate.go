package geo

import (
	"fmt"

	"mlid/domain/core"
)

// SumUp rolls the table up one level: rows are grouped by groupKey, count
// columns are summed, and the remaining hierarchy keys are carried over after
// validating they are constant within each group. Key columns named in
// dropKeys are omitted from the output. The result is a fresh table with
// exactly one row per distinct groupKey value, identified by that value, with
// groupKey kept as a key column so the roll-up is idempotent.
func SumUp(t *Table, groupKey string, dropKeys ...string) (*Table, error) {
	grouping, err := t.Group(groupKey)
	if err != nil {
		return nil, err
	}

	dropped := make(map[string]bool, len(dropKeys)+1)
	for _, k := range dropKeys {
		dropped[k] = true
	}

	nGroups := len(grouping.Groups)

	counts := make(map[string][]float64, len(t.countOrder))
	for _, name := range t.countOrder {
		col := t.counts[name]
		summed := make([]float64, nGroups)
		for row, v := range col {
			summed[grouping.Unit[row]] += v
		}
		counts[name] = summed
	}

	keys := make(map[string][]string)
	keys[groupKey] = append([]string(nil), grouping.Groups...)
	for _, name := range t.keyOrder {
		if name == groupKey || dropped[name] {
			continue
		}
		col := t.keys[name]
		kept := make([]string, nGroups)
		seen := make([]bool, nGroups)
		for row, v := range col {
			pos := grouping.Unit[row]
			if !seen[pos] {
				kept[pos] = v
				seen[pos] = true
				continue
			}
			if kept[pos] != v {
				return nil, core.NewHierarchyError(groupKey, name, grouping.Groups[pos])
			}
		}
		keys[name] = kept
	}

	out, err := NewTable(grouping.Groups, counts, keys)
	if err != nil {
		return nil, fmt.Errorf("sumup by %q: %w", groupKey, err)
	}
	return out, nil
}
