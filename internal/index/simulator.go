package index

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"mlid/domain/core"
)

// DefaultTrials is the fixed default simulation count; enough for the
// expected ID to stabilize within a couple of points of its limit.
const DefaultTrials = 1000

const defaultWorkers = 4

// Simulator estimates the ID expected under random mixing: both grand totals
// are repeatedly redistributed across units in proportion to unit population,
// and the resulting IDs averaged. Trials are independent and averaged
// order-insensitively, so they run concurrently.
type Simulator struct {
	Trials  int
	Workers int
	Seed    uint64
}

// NewSimulator creates a simulator; trials <= 0 picks DefaultTrials.
func NewSimulator(trials int) *Simulator {
	if trials <= 0 {
		trials = DefaultTrials
	}
	return &Simulator{Trials: trials, Workers: defaultWorkers}
}

// ExpectedResult carries the Monte Carlo mean and its spread across trials.
type ExpectedResult struct {
	Expected float64 `json:"expected_id"`
	StdDev   float64 `json:"std_dev"`
	Trials   int     `json:"trials"`
}

// ExpectedID redistributes totalY and totalX across units with multinomial
// sampling weighted by unitTotals, recomputes shares and ID per trial, and
// averages. The grand totals are respected exactly in every trial.
func (s *Simulator) ExpectedID(totalY, totalX float64, unitTotals []float64) (*ExpectedResult, error) {
	if totalY <= 0 || totalX <= 0 {
		return nil, fmt.Errorf("%w: group totals must be positive", core.ErrZeroTotal)
	}
	weightSum := 0.0
	for i, w := range unitTotals {
		if w < 0 {
			return nil, fmt.Errorf("%w: unit total row %d", core.ErrNegativeCount, i)
		}
		weightSum += w
	}
	if weightSum <= 0 {
		return nil, fmt.Errorf("%w: unit totals sum to zero", core.ErrZeroTotal)
	}

	trials := s.Trials
	if trials <= 0 {
		trials = DefaultTrials
	}
	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > trials {
		workers = trials
	}

	seed := s.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	nY := math.Round(totalY)
	nX := math.Round(totalX)

	type partial struct {
		sum, sumSq float64
	}
	partials := make([]partial, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		share := trials / workers
		if w < trials%workers {
			share++
		}
		g.Go(func() error {
			src := rand.NewPCG(seed, uint64(w)+1)
			yCounts := make([]float64, len(unitTotals))
			xCounts := make([]float64, len(unitTotals))
			for trial := 0; trial < share; trial++ {
				multinomial(yCounts, nY, unitTotals, weightSum, src)
				multinomial(xCounts, nX, unitTotals, weightSum, src)
				id := 0.0
				for i := range yCounts {
					id += math.Abs(yCounts[i]/nY - xCounts[i]/nX)
				}
				id *= 0.5
				partials[w].sum += id
				partials[w].sumSq += id * id
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum, sumSq := 0.0, 0.0
	for _, p := range partials {
		sum += p.sum
		sumSq += p.sumSq
	}
	mean := sum / float64(trials)
	variance := sumSq/float64(trials) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return &ExpectedResult{Expected: mean, StdDev: math.Sqrt(variance), Trials: trials}, nil
}

// multinomial draws one multinomial sample into dst using the conditional
// binomial decomposition, so the draws sum to total exactly.
func multinomial(dst []float64, total float64, weights []float64, weightSum float64, src rand.Source) {
	remaining := total
	wRemaining := weightSum
	for i := range dst {
		dst[i] = 0
		if remaining <= 0 {
			continue
		}
		if i == len(dst)-1 || weights[i] >= wRemaining {
			// Last unit, or all residual weight concentrated here: take the
			// rest so the grand total is respected exactly.
			dst[i] = remaining
			remaining = 0
			continue
		}
		if wRemaining <= 0 {
			continue
		}
		p := weights[i] / wRemaining
		if p > 0 {
			b := distuv.Binomial{N: remaining, P: p, Src: src}
			dst[i] = b.Rand()
			remaining -= dst[i]
		}
		wRemaining -= weights[i]
	}
}
