// Package index computes the index of dissimilarity and its simulation-based
// expected baseline. The index depends only on the two share vectors; the
// multilevel fit is never consulted here.
package index

import (
	"fmt"
	"math"

	"mlid/domain/core"
)

// ID computes the index of dissimilarity, 0.5 * sum(|y_i - x_i|), over two
// share vectors. The result lies in [0,1]: 0 when every unit holds identical
// shares of both groups, 1 when the groups occupy disjoint units.
func ID(y, x []float64) (float64, error) {
	if len(y) != len(x) {
		return 0, fmt.Errorf("%w: %d y shares vs %d x shares", core.ErrLengthMismatch, len(y), len(x))
	}
	sum := 0.0
	for i := range y {
		sum += math.Abs(y[i] - x[i])
	}
	return 0.5 * sum, nil
}

// FromResiduals computes the same 0.5 * sum(|.|) formula directly over
// per-unit residuals, which is how counterfactual IDs over modified epsilon
// vectors are evaluated.
func FromResiduals(eps []float64) float64 {
	sum := 0.0
	for _, e := range eps {
		sum += math.Abs(e)
	}
	return 0.5 * sum
}
