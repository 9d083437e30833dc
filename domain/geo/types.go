package geo

import (
	"fmt"
	"sort"

	"mlid/domain/core"
)

// Table is an immutable collection of unit records: one row per base
// geographic unit, with named count columns (group Y, group X, optional
// totals) and named hierarchy key columns. All analysis entities are derived
// from a Table plus parameters; the Table itself is never mutated.
type Table struct {
	ids        []string
	counts     map[string][]float64
	countOrder []string
	keys       map[string][]string
	keyOrder   []string
	n          int
}

// NewTable builds a table from unit identifiers, count columns and hierarchy
// key columns. Every column must have exactly one value per unit. The input
// slices are copied; callers keep ownership of their data.
func NewTable(ids []string, counts map[string][]float64, keys map[string][]string) (*Table, error) {
	n := len(ids)
	if n == 0 {
		return nil, core.NewInvalidInputError("ids", "table has no units")
	}

	t := &Table{
		ids:    append([]string(nil), ids...),
		counts: make(map[string][]float64, len(counts)),
		keys:   make(map[string][]string, len(keys)),
		n:      n,
	}

	for name, col := range counts {
		if len(col) != n {
			return nil, fmt.Errorf("%w: count column %q has %d values for %d units", core.ErrLengthMismatch, name, len(col), n)
		}
		t.counts[name] = append([]float64(nil), col...)
		t.countOrder = append(t.countOrder, name)
	}
	for name, col := range keys {
		if len(col) != n {
			return nil, fmt.Errorf("%w: key column %q has %d values for %d units", core.ErrLengthMismatch, name, len(col), n)
		}
		t.keys[name] = append([]string(nil), col...)
		t.keyOrder = append(t.keyOrder, name)
	}

	// Map iteration order is random; fix a stable column order.
	sort.Strings(t.countOrder)
	sort.Strings(t.keyOrder)

	return t, nil
}

// N returns the number of unit records.
func (t *Table) N() int { return t.n }

// UnitIDs returns a copy of the unit identifier column.
func (t *Table) UnitIDs() []string {
	return append([]string(nil), t.ids...)
}

// Counts returns a copy of a count column.
func (t *Table) Counts(name string) ([]float64, bool) {
	col, ok := t.counts[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), col...), true
}

// Keys returns a copy of a hierarchy key column.
func (t *Table) Keys(name string) ([]string, bool) {
	col, ok := t.keys[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), col...), true
}

// CountColumns returns the count column names in stable order.
func (t *Table) CountColumns() []string {
	return append([]string(nil), t.countOrder...)
}

// KeyColumns returns the hierarchy key column names in stable order.
func (t *Table) KeyColumns() []string {
	return append([]string(nil), t.keyOrder...)
}

// HasKey reports whether a hierarchy key column exists.
func (t *Table) HasKey(name string) bool {
	_, ok := t.keys[name]
	return ok
}

// HasCount reports whether a count column exists.
func (t *Table) HasCount(name string) bool {
	_, ok := t.counts[name]
	return ok
}
