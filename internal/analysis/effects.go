package analysis

import (
	"fmt"
	"math"

	"mlid/domain/core"
	"mlid/internal/index"
	"mlid/internal/multilevel"
)

// Place names one group at one hierarchy level whose contribution is being
// quantified.
type Place struct {
	Level string `json:"level"`
	Group string `json:"group"`
}

// EffectResult holds the three counterfactual IDs for a set of named places:
// the ID with the places' level effects zeroed, the ID with the member
// units' whole residuals zeroed, and the ID of the member subset alone with
// re-normalized shares. Impact and RSquared summarize how disproportionate
// and how systematic the places' contribution is.
type EffectResult struct {
	Places           []Place `json:"places"`
	LevelZeroedID    float64 `json:"level_zeroed_id"`
	ResidualZeroedID float64 `json:"residual_zeroed_id"`
	SubsetID         float64 `json:"subset_id"`
	Impact           float64 `json:"impact"`
	RSquared         float64 `json:"r_squared"`
	MemberUnits      int     `json:"member_units"`
}

// Effect computes the counterfactual IDs when the named places' effects are
// neutralized. Unknown levels or groups fail with a configuration error.
func Effect(m *multilevel.Model, places []Place) (*EffectResult, error) {
	if len(places) == 0 {
		return nil, core.NewConfigurationError("places", "at least one place is required")
	}

	n := len(m.Response)

	// membership[row] is the index of the first named place containing the
	// unit, or -1. Used for the subset, the removed mass and the ANOVA
	// grouping below.
	membership := make([]int, n)
	for row := range membership {
		membership[row] = -1
	}
	eps1 := append([]float64(nil), m.Response...)
	for pi, place := range places {
		lvl, err := m.Level(place.Level)
		if err != nil {
			return nil, err
		}
		pos, ok := lvl.Index[place.Group]
		if !ok {
			return nil, fmt.Errorf("%w: %q at level %q", core.ErrUnknownGroup, place.Group, place.Level)
		}
		for row, p := range lvl.Unit {
			if p != pos {
				continue
			}
			// Scenario 1: only the named level effect is removed.
			eps1[row] -= lvl.Effects[pos]
			if membership[row] < 0 {
				membership[row] = pi
			}
		}
	}

	members := 0
	eps2 := make([]float64, n)
	totalAbs, memberAbs := 0.0, 0.0
	subsetY, subsetX := 0.0, 0.0
	for row := range eps2 {
		abs := math.Abs(m.Response[row])
		totalAbs += abs
		if membership[row] >= 0 {
			members++
			memberAbs += abs
			subsetY += m.Shares.Y[row]
			subsetX += m.Shares.X[row]
			// Scenario 2: the member unit's entire residual is removed.
			eps2[row] = 0
		} else {
			eps2[row] = m.Response[row]
		}
	}
	if members == 0 {
		return nil, core.NewConfigurationError("places", "named places contain no units")
	}
	if subsetY <= 0 || subsetX <= 0 {
		return nil, fmt.Errorf("%w: named places hold no population of one group", core.ErrZeroTotal)
	}

	// Scenario 3: a standard ID over only the member units, with shares
	// re-normalized within the subset.
	subsetID := 0.0
	for row := range eps2 {
		if membership[row] >= 0 {
			subsetID += math.Abs(m.Shares.Y[row]/subsetY - m.Shares.X[row]/subsetX)
		}
	}
	subsetID *= 0.5

	res := &EffectResult{
		Places:           append([]Place(nil), places...),
		LevelZeroedID:    index.FromResiduals(eps1),
		ResidualZeroedID: index.FromResiduals(eps2),
		SubsetID:         subsetID,
		MemberUnits:      members,
	}

	pcntUnits := 100 * float64(members) / float64(n)
	if totalAbs > 0 && pcntUnits > 0 {
		res.Impact = (100 * memberAbs / totalAbs) / pcntUnits * 100
	}
	res.RSquared = membershipRSquared(m.Residuals, membership)

	return res, nil
}

// membershipRSquared is the one-way ANOVA share of base-residual variance
// explained by the place indicator: units grouped by the place containing
// them, non-members pooled as one group.
func membershipRSquared(residuals []float64, membership []int) float64 {
	groupSum := make(map[int]float64)
	groupN := make(map[int]int)
	mean := 0.0
	for row, e := range residuals {
		groupSum[membership[row]] += e
		groupN[membership[row]]++
		mean += e
	}
	mean /= float64(len(residuals))

	ssTotal, ssWithin := 0.0, 0.0
	for row, e := range residuals {
		d := e - mean
		ssTotal += d * d
		gm := groupSum[membership[row]] / float64(groupN[membership[row]])
		w := e - gm
		ssWithin += w * w
	}
	if ssTotal == 0 {
		return 0
	}
	return 1 - ssWithin/ssTotal
}
