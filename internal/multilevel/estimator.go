package multilevel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"mlid/domain/core"
	"mlid/domain/geo"
)

// Options bound the variance-component optimizer. Tol is the convergence
// tolerance on the per-iteration change of each variance component, measured
// relative to the response mean square. Zero values pick the defaults;
// callers retrying after ErrModelFit can relax Tol explicitly.
type Options struct {
	MaxIter int
	Tol     float64
}

const (
	defaultMaxIter = 1000
	defaultTol     = 1e-8

	// EM approaches a zero variance boundary sublinearly, so components
	// below this fraction of the response mean square collapse to exactly
	// zero and their effects drop from the model.
	collapseFraction = 1e-3

	// The base variance converges geometrically and only needs a floor
	// against exact zero in the lambda ratios.
	epsilonFloor = 1e-12
)

// Estimator fits the nested random-intercept model
//
//	y_i = x_i + u(level 1) + ... + u(level L) + e_i
//
// with x as a fixed offset (coefficient 1, zero intercept), by EM-style REML
// on Henderson's mixed-model equations. The normal equations are assembled
// from group co-membership counts and solved by Cholesky factorization each
// iteration; BLUPs fall out of the final solve.
type Estimator struct {
	opts Options
}

// NewEstimator creates an estimator with the given optimizer bounds.
func NewEstimator(opts Options) *Estimator {
	if opts.MaxIter <= 0 {
		opts.MaxIter = defaultMaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = defaultTol
	}
	return &Estimator{opts: opts}
}

// Fit estimates the variance components and BLUP effects for the table under
// the given spec. The hierarchy is validated for strict nesting first.
func (e *Estimator) Fit(t *geo.Table, spec Spec) (*Model, error) {
	if err := spec.Levels.Validate(t); err != nil {
		return nil, err
	}

	shares, err := t.Shares(spec.YCol, spec.XCol, spec.TotalCol)
	if err != nil {
		return nil, err
	}

	n := t.N()
	r := make([]float64, n)
	for i := range r {
		r[i] = shares.Y[i] - shares.X[i]
	}

	m := &Model{
		Spec:     spec,
		Units:    t.UnitIDs(),
		Shares:   shares,
		Response: r,
	}

	// Degenerate zero-level case: ordinary residuals, no decomposition.
	if len(spec.Levels) == 0 {
		m.Residuals = append([]float64(nil), r...)
		m.ResidualVar = meanSquare(r)
		return m, nil
	}

	levels := make([]Level, len(spec.Levels))
	offsets := make([]int, len(spec.Levels))
	q := 0
	for li, name := range spec.Levels {
		grouping, err := t.Group(name)
		if err != nil {
			return nil, err
		}
		levels[li] = Level{
			Name:   name,
			Groups: grouping.Groups,
			Index:  grouping.Index,
			Unit:   grouping.Unit,
			Sizes:  grouping.Sizes,
		}
		offsets[li] = q
		q += len(grouping.Groups)
	}

	// Z'Z from co-membership counts and Z'r from per-group response sums.
	// Z is never formed: entry (g,h) counts the units inside both groups.
	ztz := make([][]float64, q)
	for i := range ztz {
		ztz[i] = make([]float64, q)
	}
	ztr := make([]float64, q)
	cols := make([][]int, n)
	for row := 0; row < n; row++ {
		cs := make([]int, len(levels))
		for li := range levels {
			cs[li] = offsets[li] + levels[li].Unit[row]
		}
		cols[row] = cs
		for _, a := range cs {
			ztr[a] += r[row]
			for _, b := range cs {
				ztz[a][b]++
			}
		}
	}

	msr := meanSquare(r)
	if msr == 0 {
		// Identical shares everywhere: every component is exactly zero.
		for li := range levels {
			levels[li].Effects = make([]float64, len(levels[li].Groups))
			levels[li].SE = make([]float64, len(levels[li].Groups))
		}
		m.Levels = levels
		m.Residuals = make([]float64, n)
		return m, nil
	}

	// Start from an even split of the response variance across components.
	sigmaE := msr / float64(len(levels)+1)
	sigmas := make([]float64, len(levels))
	for li := range sigmas {
		sigmas[li] = sigmaE
	}
	active := make([]bool, len(levels))
	for li := range active {
		active[li] = true
	}

	var (
		u         []float64 // solution in active-column space
		cdiag     []float64 // diagonal of the MME inverse, active space
		activeCol []int     // active-space position -> global column
		converged bool
	)
	residuals := make([]float64, n)

	for iter := 1; iter <= e.opts.MaxIter; iter++ {
		m.Iterations = iter

		// Assemble the active part of the mixed-model equations.
		activeCol = activeCol[:0]
		globalToActive := make(map[int]int)
		for li := range levels {
			if !active[li] {
				continue
			}
			for g := range levels[li].Groups {
				globalToActive[offsets[li]+g] = len(activeCol)
				activeCol = append(activeCol, offsets[li]+g)
			}
		}
		qa := len(activeCol)

		if qa > 0 {
			a := mat.NewSymDense(qa, nil)
			rhs := mat.NewVecDense(qa, nil)
			for ai, ga := range activeCol {
				rhs.SetVec(ai, ztr[ga])
				for aj := ai; aj < qa; aj++ {
					a.SetSym(ai, aj, ztz[ga][activeCol[aj]])
				}
			}
			for li := range levels {
				if !active[li] {
					continue
				}
				lambda := sigmaE / sigmas[li]
				for g := range levels[li].Groups {
					ai := globalToActive[offsets[li]+g]
					a.SetSym(ai, ai, a.At(ai, ai)+lambda)
				}
			}

			var chol mat.Cholesky
			if ok := chol.Factorize(a); !ok {
				return nil, core.NewModelFitError(iter, "mixed-model equations not positive definite")
			}
			sol := mat.NewVecDense(qa, nil)
			if err := chol.SolveVecTo(sol, rhs); err != nil {
				return nil, core.NewModelFitError(iter, fmt.Sprintf("solving mixed-model equations: %v", err))
			}
			var inv mat.SymDense
			if err := chol.InverseTo(&inv); err != nil {
				return nil, core.NewModelFitError(iter, fmt.Sprintf("inverting mixed-model equations: %v", err))
			}
			u = u[:0]
			cdiag = cdiag[:0]
			for ai := 0; ai < qa; ai++ {
				u = append(u, sol.AtVec(ai))
				cdiag = append(cdiag, inv.At(ai, ai))
			}
		} else {
			u = u[:0]
			cdiag = cdiag[:0]
		}

		// Residuals e = r - Zu over active columns only.
		for row := 0; row < n; row++ {
			res := r[row]
			for li, c := range cols[row] {
				if !active[li] {
					continue
				}
				res -= u[globalToActive[c]]
			}
			residuals[row] = res
		}

		// EM updates. With the offset already subtracted there are no fixed
		// effects, so the REML and ML residual updates coincide:
		//   sigma_l^2 <- (u_l'u_l + sigma_e^2 tr(C_ll)) / q_l
		//   sigma_e^2 <- r'(r - Zu) / n
		prevE := sigmaE
		prev := append([]float64(nil), sigmas...)

		newE := 0.0
		for row := 0; row < n; row++ {
			newE += r[row] * residuals[row]
		}
		newE /= float64(n)
		if newE < msr*epsilonFloor {
			newE = msr * epsilonFloor
		}

		for li := range levels {
			if !active[li] {
				continue
			}
			sumU2, trace := 0.0, 0.0
			for g := range levels[li].Groups {
				ai := globalToActive[offsets[li]+g]
				sumU2 += u[ai] * u[ai]
				trace += cdiag[ai]
			}
			sigmas[li] = (sumU2 + sigmaE*trace) / float64(len(levels[li].Groups))
			if sigmas[li] <= msr*collapseFraction {
				// Boundary estimate: collapse the level to exactly zero
				// instead of chasing the sublinear EM tail. Its effects
				// become zero.
				sigmas[li] = 0
				active[li] = false
				m.Warnings = append(m.Warnings, core.NewWarning(core.WarnZeroVarianceStep,
					fmt.Sprintf("level %q variance collapsed to zero", levels[li].Name)))
			}
		}
		sigmaE = newE

		// Convergence is judged against the fixed response scale, not the
		// components themselves, so a component shrinking toward zero cannot
		// stall the test.
		delta := math.Abs(sigmaE-prevE) / msr
		for li := range sigmas {
			if d := math.Abs(sigmas[li]-prev[li]) / msr; d > delta {
				delta = d
			}
		}
		if delta < e.opts.Tol {
			converged = true
			break
		}
	}

	if !converged {
		return nil, core.NewModelFitError(e.opts.MaxIter, "variance components did not stabilize")
	}

	// Unpack the final solve into per-level effects and standard errors.
	// Collapsed levels keep zero effects by construction.
	globalToActive := make(map[int]int, len(activeCol))
	for ai, ga := range activeCol {
		globalToActive[ga] = ai
	}
	sdE := math.Sqrt(sigmaE)
	for li := range levels {
		nG := len(levels[li].Groups)
		levels[li].Variance = sigmas[li]
		levels[li].Effects = make([]float64, nG)
		levels[li].SE = make([]float64, nG)
		if !active[li] {
			continue
		}
		for g := 0; g < nG; g++ {
			ai := globalToActive[offsets[li]+g]
			levels[li].Effects[g] = u[ai]
			levels[li].SE[g] = sdE * math.Sqrt(cdiag[ai])
		}
	}

	m.Levels = levels
	m.Residuals = append([]float64(nil), residuals...)
	m.ResidualVar = sigmaE
	return m, nil
}

func meanSquare(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	ss := 0.0
	for _, x := range v {
		ss += x * x
	}
	return ss / float64(len(v))
}

