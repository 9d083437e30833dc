package analysis

import (
	"mlid/domain/core"
	"mlid/internal/index"
	"mlid/internal/multilevel"
)

// LevelVariance is one row of the variance decomposition: the level's
// variance component, its share of the total (Pvariance, percentages summing
// to 100 across levels including base), and the Holdback - the percentage
// change in ID if the level's effects were removed.
type LevelVariance struct {
	Level     string  `json:"level"`
	Variance  float64 `json:"variance"`
	Pvariance float64 `json:"pvariance"`
	Holdback  float64 `json:"holdback"`
}

// Decompose partitions the fitted model's residual variance across the
// hierarchy. The base level is always reported last. A model fitted without
// levels has nothing to decompose.
func Decompose(m *multilevel.Model) ([]LevelVariance, error) {
	if len(m.Levels) == 0 {
		return nil, core.ErrNoLevels
	}

	total := m.ResidualVar
	for i := range m.Levels {
		total += m.Levels[i].Variance
	}
	id := m.ID()

	out := make([]LevelVariance, 0, len(m.Levels)+1)
	for i := range m.Levels {
		row := LevelVariance{Level: m.Levels[i].Name, Variance: m.Levels[i].Variance}
		if total > 0 {
			row.Pvariance = 100 * m.Levels[i].Variance / total
		}
		hb, err := holdback(m, m.Levels[i].Name, id)
		if err != nil {
			return nil, err
		}
		row.Holdback = hb
		out = append(out, row)
	}

	base := LevelVariance{Level: multilevel.BaseLevel, Variance: m.ResidualVar}
	if total > 0 {
		base.Pvariance = 100 * m.ResidualVar / total
	}
	hb, err := holdback(m, multilevel.BaseLevel, id)
	if err != nil {
		return nil, err
	}
	base.Holdback = hb
	out = append(out, base)

	return out, nil
}

// holdback recomputes the ID with one level's effect term zeroed and returns
// the percentage change against the observed ID.
func holdback(m *multilevel.Model, level string, id float64) (float64, error) {
	if id == 0 {
		return 0, nil
	}
	eps, err := m.EpsilonWithLevelZeroed(level)
	if err != nil {
		return 0, err
	}
	return 100 * (index.FromResiduals(eps) - id) / id, nil
}
