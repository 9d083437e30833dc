package analysis

import (
	"sort"
)

// CatplotCap is the fixed display budget for the caterpillar plot: the 10
// lowest and 10 highest ranked residuals, plus up to 30 breakpoint picks.
const CatplotCap = 50

const catplotTail = 10

// CatPoint is one selected residual: its ascending rank, its position in the
// caller's input slice, and its value.
type CatPoint struct {
	Rank  int     `json:"rank"`
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// CatplotSelect picks a bounded, distribution-preserving subsample of the
// values for diagnostic display. Both tails are always kept; the remaining
// budget goes greedily to the point whose value differs most from its
// immediately preceding selected point in rank order, so the sharpest
// rank-to-rank breaks survive the thinning. Ties are broken by original
// rank, making the selection deterministic. A cap smaller than the two
// 10-point tails shrinks the tails to fit; the cap is never exceeded.
func CatplotSelect(values []float64, cap int) []CatPoint {
	if cap <= 0 {
		cap = CatplotCap
	}
	n := len(values)

	ranked := make([]CatPoint, n)
	for i, v := range values {
		ranked[i] = CatPoint{Index: i, Value: v}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Value != ranked[b].Value {
			return ranked[a].Value < ranked[b].Value
		}
		return ranked[a].Index < ranked[b].Index
	})
	for r := range ranked {
		ranked[r].Rank = r
	}

	if n <= cap {
		return ranked
	}

	bottom, top := catplotTail, catplotTail
	if cap < bottom+top {
		bottom = (cap + 1) / 2
		top = cap - bottom
	}

	selected := make([]bool, n)
	count := 0
	for r := 0; r < bottom; r++ {
		selected[r] = true
		count++
	}
	for r := n - top; r < n; r++ {
		if !selected[r] {
			selected[r] = true
			count++
		}
	}

	for count < cap {
		best := -1
		bestGap := -1.0
		prev := 0.0
		havePrev := false
		for r := 0; r < n; r++ {
			if selected[r] {
				prev = ranked[r].Value
				havePrev = true
				continue
			}
			if !havePrev {
				continue
			}
			gap := ranked[r].Value - prev
			if gap < 0 {
				gap = -gap
			}
			if gap > bestGap {
				bestGap = gap
				best = r
			}
		}
		if best < 0 {
			break
		}
		selected[best] = true
		count++
	}

	out := make([]CatPoint, 0, count)
	for r := 0; r < n; r++ {
		if selected[r] {
			out = append(out, ranked[r])
		}
	}
	return out
}
