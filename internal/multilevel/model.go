package multilevel

import (
	"fmt"
	"math"

	"mlid/domain/core"
	"mlid/domain/geo"
)

// BaseLevel is the reserved name for the base (unit) level in decomposition
// output. It never appears as a hierarchy key column.
const BaseLevel = "base"

// Spec names the columns of one fit: the two group count columns, the
// optional totals column, and the hierarchy levels ordered base to top. An
// empty level list degenerates to ordinary residuals y_i - x_i with no
// variance decomposition.
type Spec struct {
	YCol     string        `json:"y"`
	XCol     string        `json:"x"`
	TotalCol string        `json:"total,omitempty"`
	Levels   geo.Hierarchy `json:"levels,omitempty"`
}

// Level holds one hierarchy level of a fitted model: the grouping index plus
// the estimated variance component and the BLUP effect per group.
type Level struct {
	Name     string
	Groups   []string
	Index    map[string]int
	Unit     []int
	Sizes    []int
	Variance float64
	Effects  []float64
	SE       []float64
}

// Effect returns the estimated effect and its standard error for one group.
func (l *Level) Effect(group string) (est, se float64, err error) {
	pos, ok := l.Index[group]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q at level %q", core.ErrUnknownGroup, group, l.Name)
	}
	return l.Effects[pos], l.SE[pos], nil
}

// Model is a fitted multilevel residual decomposition. For every unit the
// response y_i - x_i equals the sum of its level effects plus the base
// residual; the base residual absorbs whatever the coarser levels do not
// capture. All fields are fresh copies owned by the model.
type Model struct {
	Spec        Spec
	Units       []string
	Shares      *geo.Shares
	Response    []float64
	Levels      []Level
	Residuals   []float64
	ResidualVar float64
	Iterations  int
	Warnings    []core.Warning
}

// N returns the number of units the model was fitted on.
func (m *Model) N() int { return len(m.Response) }

// ID computes the index of dissimilarity from the model's shares,
// 0.5 * sum(|y_i - x_i|). It depends only on the raw shares, not the fit.
func (m *Model) ID() float64 {
	sum := 0.0
	for _, r := range m.Response {
		sum += math.Abs(r)
	}
	return 0.5 * sum
}

// SigmaEpsilon returns the standard error of the base-level residuals, the
// shared scale for impact and confidence statistics.
func (m *Model) SigmaEpsilon() float64 {
	n := len(m.Residuals)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, e := range m.Residuals {
		mean += e
	}
	mean /= float64(n)
	ss := 0.0
	for _, e := range m.Residuals {
		d := e - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Level looks up a fitted hierarchy level by name.
func (m *Model) Level(name string) (*Level, error) {
	for i := range m.Levels {
		if m.Levels[i].Name == name {
			return &m.Levels[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", core.ErrUnknownLevel, name)
}

// LevelNames returns the fitted level names, base to top.
func (m *Model) LevelNames() []string {
	names := make([]string, len(m.Levels))
	for i := range m.Levels {
		names[i] = m.Levels[i].Name
	}
	return names
}

// UnitEffects expands one level's group effects to a per-unit vector.
func (m *Model) UnitEffects(name string) ([]float64, error) {
	lvl, err := m.Level(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(m.Response))
	for row, pos := range lvl.Unit {
		out[row] = lvl.Effects[pos]
	}
	return out, nil
}

// Epsilon returns a copy of the per-unit total residuals y_i - x_i.
func (m *Model) Epsilon() []float64 {
	return append([]float64(nil), m.Response...)
}

// EpsilonWithLevelZeroed recomputes the per-unit residuals with one level's
// effect term replaced by zero, leaving every other level and the base
// residual untouched. The base level may be zeroed too, which strips the
// residual down to the systematic level effects.
func (m *Model) EpsilonWithLevelZeroed(name string) ([]float64, error) {
	if name == BaseLevel {
		out := make([]float64, len(m.Response))
		for row := range out {
			out[row] = m.Response[row] - m.Residuals[row]
		}
		return out, nil
	}
	effects, err := m.UnitEffects(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(m.Response))
	for row := range out {
		out[row] = m.Response[row] - effects[row]
	}
	return out, nil
}
