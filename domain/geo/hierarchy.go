package geo

import (
	"fmt"

	"mlid/domain/core"
)

// Hierarchy is the ordered list of key column names from the level just
// above base up to the top of the geography (e.g. district, authority,
// region). The base level is implicit: every unit is its own group there.
type Hierarchy []string

// Validate checks that every level is a key column of the table and that the
// levels strictly nest: grouping by a lower key must never split a unit's
// higher key. Nesting between adjacent levels implies nesting overall.
func (h Hierarchy) Validate(t *Table) error {
	for _, level := range h {
		if !t.HasKey(level) {
			return fmt.Errorf("%w: %q", core.ErrUnknownLevel, level)
		}
	}
	for i := 0; i+1 < len(h); i++ {
		lower, upper := h[i], h[i+1]
		lowerCol := t.keys[lower]
		upperCol := t.keys[upper]
		seen := make(map[string]string, len(lowerCol))
		for row := range lowerCol {
			g := lowerCol[row]
			u := upperCol[row]
			if prev, ok := seen[g]; ok {
				if prev != u {
					return core.NewHierarchyError(lower, upper, g)
				}
			} else {
				seen[g] = u
			}
		}
	}
	return nil
}

// Grouping is the arena-style index of one level's groups: group labels in
// first-appearance order, a label lookup, and each unit's group position.
type Grouping struct {
	Level  string
	Groups []string
	Index  map[string]int
	Unit   []int
	Sizes  []int
}

// Group builds the grouping index for one level of the hierarchy.
func (t *Table) Group(level string) (*Grouping, error) {
	col, ok := t.keys[level]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownLevel, level)
	}

	g := &Grouping{
		Level: level,
		Index: make(map[string]int),
		Unit:  make([]int, t.n),
	}
	for row, label := range col {
		pos, ok := g.Index[label]
		if !ok {
			pos = len(g.Groups)
			g.Index[label] = pos
			g.Groups = append(g.Groups, label)
			g.Sizes = append(g.Sizes, 0)
		}
		g.Unit[row] = pos
		g.Sizes[pos]++
	}
	return g, nil
}

// Members returns the unit row indices belonging to one group.
func (g *Grouping) Members(label string) []int {
	pos, ok := g.Index[label]
	if !ok {
		return nil
	}
	members := make([]int, 0, g.Sizes[pos])
	for row, p := range g.Unit {
		if p == pos {
			members = append(members, row)
		}
	}
	return members
}
