package geo

import (
	"fmt"

	"mlid/domain/core"
)

// Shares holds per-unit proportional shares of the two groups: each column
// is the unit's count divided by its grand total, so every column sums to 1.
// Totals carries the unit populations the simulation redistributes over;
// when the table has no totals column they are estimated as n_y + n_x and a
// warning is attached rather than failing.
type Shares struct {
	Y         []float64
	X         []float64
	Totals    []float64
	Estimated bool
	Warnings  []core.Warning
}

// Shares converts the named count columns into proportional shares.
// Counts must be non-negative and each column's grand total strictly
// positive. Pass totalCol == "" when the table carries no population column.
func (t *Table) Shares(yCol, xCol, totalCol string) (*Shares, error) {
	y, err := t.shareColumn(yCol)
	if err != nil {
		return nil, err
	}
	x, err := t.shareColumn(xCol)
	if err != nil {
		return nil, err
	}

	s := &Shares{Y: y, X: x}

	if totalCol != "" {
		totals, ok := t.counts[totalCol]
		if !ok {
			return nil, fmt.Errorf("%w: %q", core.ErrMissingColumn, totalCol)
		}
		for row, v := range totals {
			if v < 0 {
				return nil, fmt.Errorf("%w: column %q row %d", core.ErrNegativeCount, totalCol, row)
			}
		}
		s.Totals = append([]float64(nil), totals...)
		return s, nil
	}

	// No population column: estimate unit totals as n_y + n_x. This is a
	// documented modelling approximation, surfaced as a warning so callers
	// can supply real totals instead.
	yRaw := t.counts[yCol]
	xRaw := t.counts[xCol]
	s.Totals = make([]float64, t.n)
	for row := range s.Totals {
		s.Totals[row] = yRaw[row] + xRaw[row]
	}
	s.Estimated = true
	s.Warnings = append(s.Warnings, core.NewWarning(core.WarnEstimatedTotals,
		fmt.Sprintf("no totals column supplied; unit totals estimated as %s + %s", yCol, xCol)))
	return s, nil
}

// shareColumn validates one count column and divides it through by its sum.
func (t *Table) shareColumn(name string) ([]float64, error) {
	col, ok := t.counts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrMissingColumn, name)
	}

	sum := 0.0
	for row, v := range col {
		if v < 0 {
			return nil, fmt.Errorf("%w: column %q row %d", core.ErrNegativeCount, name, row)
		}
		sum += v
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: column %q", core.ErrZeroTotal, name)
	}

	shares := make([]float64, len(col))
	for row, v := range col {
		shares[row] = v / sum
	}
	return shares, nil
}
