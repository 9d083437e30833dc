// Package analysis derives the place-level statistics from a fitted model:
// impact tables, variance partitions, holdbacks, counterfactual effects,
// confidence intervals and the catplot subsample.
package analysis

import (
	"math"

	"github.com/montanaflynn/stats"

	"mlid/internal/multilevel"
)

// Impact is one row of the impact table: how much of the total ID one named
// group accounts for, relative to its share of units.
type Impact struct {
	Level        string  `json:"level"`
	Group        string  `json:"group"`
	PcntID       float64 `json:"pcnt_id"`
	PcntUnits    float64 `json:"pcnt_units"`
	Impact       float64 `json:"impact"`
	ScldMean     float64 `json:"scld_mean"`
	ScldMin      float64 `json:"scld_min"`
	ScldMax      float64 `json:"scld_max"`
	ScldSD       float64 `json:"scld_sd"`
	PcntNegative float64 `json:"pcnt_negative"`
}

// Impacts computes the impact table for the chosen levels. Each group's
// statistics are computed independently; the only shared quantity is
// sigma_epsilon, the standard error of the base-level residuals, which
// scales the residual moments.
func Impacts(m *multilevel.Model, levels ...string) ([]Impact, error) {
	eps := m.Response
	totalAbs := 0.0
	for _, e := range eps {
		totalAbs += math.Abs(e)
	}
	sigma := m.SigmaEpsilon()
	n := float64(len(eps))

	var out []Impact
	for _, name := range levels {
		lvl, err := m.Level(name)
		if err != nil {
			return nil, err
		}
		for pos, group := range lvl.Groups {
			var members []float64
			groupAbs := 0.0
			negative := 0
			for row, p := range lvl.Unit {
				if p != pos {
					continue
				}
				members = append(members, eps[row])
				groupAbs += math.Abs(eps[row])
				if eps[row] < 0 {
					negative++
				}
			}

			row := Impact{Level: name, Group: group}
			if totalAbs > 0 {
				row.PcntID = 100 * groupAbs / totalAbs
			}
			row.PcntUnits = 100 * float64(len(members)) / n
			if row.PcntUnits > 0 {
				row.Impact = row.PcntID / row.PcntUnits * 100
			}
			row.PcntNegative = 100 * float64(negative) / float64(len(members))

			if sigma > 0 {
				mean, _ := stats.Mean(members)
				minV, _ := stats.Min(members)
				maxV, _ := stats.Max(members)
				row.ScldMean = mean / sigma
				row.ScldMin = minV / sigma
				row.ScldMax = maxV / sigma
				if len(members) > 1 {
					sd, _ := stats.StandardDeviationSample(members)
					row.ScldSD = sd / sigma
				}
			}
			out = append(out, row)
		}
	}
	return out, nil
}
