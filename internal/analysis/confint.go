package analysis

import (
	"mlid/internal/multilevel"
)

// DefaultComparativeFactor is the interval half-width in standard errors for
// comparing two means at 95%: 1.39, not the single-mean 1.96. Overlap of two
// such intervals then approximates a 5% two-mean test. It is a parameter of
// ConfInt, never applied silently.
const DefaultComparativeFactor = 1.39

// Interval is one scaled confidence interval: the group's effect estimate
// divided by sigma_epsilon, with half-width factor * SE / sigma_epsilon.
type Interval struct {
	Level    string  `json:"level"`
	Group    string  `json:"group"`
	Estimate float64 `json:"estimate"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

// ConfInt computes scaled confidence intervals for every group at every
// fitted level, plus the base-level residuals (one per unit, scaled SE of
// exactly 1). factor <= 0 picks DefaultComparativeFactor.
func ConfInt(m *multilevel.Model, factor float64) ([]Interval, error) {
	if factor <= 0 {
		factor = DefaultComparativeFactor
	}
	sigma := m.SigmaEpsilon()

	var out []Interval
	for i := range m.Levels {
		lvl := &m.Levels[i]
		for pos, group := range lvl.Groups {
			iv := Interval{Level: lvl.Name, Group: group}
			if sigma > 0 {
				iv.Estimate = lvl.Effects[pos] / sigma
				half := factor * lvl.SE[pos] / sigma
				iv.Lower = iv.Estimate - half
				iv.Upper = iv.Estimate + half
			}
			out = append(out, iv)
		}
	}

	for row, e := range m.Residuals {
		iv := Interval{Level: multilevel.BaseLevel, Group: m.Units[row]}
		if sigma > 0 {
			iv.Estimate = e / sigma
			iv.Lower = iv.Estimate - factor
			iv.Upper = iv.Estimate + factor
		}
		out = append(out, iv)
	}
	return out, nil
}
