package app

import (
	"context"
	"time"

	"mlid/domain/core"
	"mlid/domain/geo"
	"mlid/internal/analysis"
	"mlid/internal/index"
	"mlid/internal/logging"
	"mlid/internal/multilevel"
)

// Request describes one full decomposition run over a unit table.
type Request struct {
	Spec multilevel.Spec `json:"spec"`

	// Simulations controls the expected-ID baseline: 0 uses the default
	// trial count, negative skips the simulation entirely.
	Simulations int    `json:"simulations,omitempty"`
	Seed        uint64 `json:"seed,omitempty"`

	// CIFactor is the comparative interval width factor; 0 uses the default.
	CIFactor float64 `json:"ci_factor,omitempty"`

	// ImpactLevels picks the levels for the impact table; empty means all
	// fitted levels.
	ImpactLevels []string `json:"impact_levels,omitempty"`

	// Places, when given, drives the counterfactual effect calculation.
	Places []analysis.Place `json:"places,omitempty"`

	// CatplotLevel names the level whose scaled residuals feed the ranked
	// subsample; empty or "base" means the base-level residuals.
	CatplotLevel string `json:"catplot_level,omitempty"`
}

// Result is the complete in-memory output of one analysis run, ready for an
// external presentation collaborator to render.
type Result struct {
	RunID         core.AnalysisID           `json:"run_id"`
	ID            float64                   `json:"id"`
	Expected      *index.ExpectedResult     `json:"expected,omitempty"`
	Decomposition []analysis.LevelVariance  `json:"decomposition,omitempty"`
	Impacts       []analysis.Impact         `json:"impacts,omitempty"`
	Effect        *analysis.EffectResult    `json:"effect,omitempty"`
	Intervals     []analysis.Interval       `json:"intervals"`
	Catplot       []analysis.CatPoint       `json:"catplot"`
	Iterations    int                       `json:"iterations"`
	Warnings      []core.Warning            `json:"warnings,omitempty"`
}

// AnalysisService wires the estimator and the derived statistics into one
// call. It is stateless between calls; the table is never mutated.
type AnalysisService struct {
	estimator *multilevel.Estimator
	log       *logging.Logger
}

// NewAnalysisService creates the service with the given optimizer bounds.
func NewAnalysisService(opts multilevel.Options, log *logging.Logger) *AnalysisService {
	if log == nil {
		log = logging.NewDefaultLogger()
	}
	return &AnalysisService{
		estimator: multilevel.NewEstimator(opts),
		log:       log,
	}
}

// Run fits the model and computes every requested statistic.
func (s *AnalysisService) Run(ctx context.Context, t *geo.Table, req Request) (*Result, error) {
	start := time.Now()

	model, err := s.estimator.Fit(t, req.Spec)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:      core.AnalysisID(core.NewID()),
		ID:         model.ID(),
		Iterations: model.Iterations,
		Warnings:   model.Warnings,
	}

	if len(model.Levels) > 0 {
		res.Decomposition, err = analysis.Decompose(model)
		if err != nil {
			return nil, err
		}

		impactLevels := req.ImpactLevels
		if len(impactLevels) == 0 {
			impactLevels = model.LevelNames()
		}
		res.Impacts, err = analysis.Impacts(model, impactLevels...)
		if err != nil {
			return nil, err
		}
	}

	if len(req.Places) > 0 {
		res.Effect, err = analysis.Effect(model, req.Places)
		if err != nil {
			return nil, err
		}
	}

	res.Intervals, err = analysis.ConfInt(model, req.CIFactor)
	if err != nil {
		return nil, err
	}

	res.Catplot, err = s.catplot(model, req.CatplotLevel)
	if err != nil {
		return nil, err
	}

	if req.Simulations >= 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Expected, err = s.expected(t, req, model)
		if err != nil {
			return nil, err
		}
		// The estimated-totals approximation only matters once the
		// simulation redistributes over those totals.
		res.Warnings = append(res.Warnings, model.Shares.Warnings...)
	}

	s.log.Info("analysis %s: n=%d levels=%d id=%.4f in %s",
		res.RunID, t.N(), len(model.Levels), res.ID, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// expected runs the Monte Carlo baseline using the table's grand totals and
// the (supplied or estimated) unit totals.
func (s *AnalysisService) expected(t *geo.Table, req Request, model *multilevel.Model) (*index.ExpectedResult, error) {
	yCounts, _ := t.Counts(req.Spec.YCol)
	xCounts, _ := t.Counts(req.Spec.XCol)
	totalY, totalX := 0.0, 0.0
	for i := range yCounts {
		totalY += yCounts[i]
		totalX += xCounts[i]
	}

	sim := index.NewSimulator(req.Simulations)
	sim.Seed = req.Seed
	return sim.ExpectedID(totalY, totalX, model.Shares.Totals)
}

// catplot ranks the chosen level's scaled values and thins them to the
// display cap.
func (s *AnalysisService) catplot(model *multilevel.Model, level string) ([]analysis.CatPoint, error) {
	sigma := model.SigmaEpsilon()

	var values []float64
	if level == "" || level == multilevel.BaseLevel {
		values = append([]float64(nil), model.Residuals...)
	} else {
		lvl, err := model.Level(level)
		if err != nil {
			return nil, err
		}
		values = append([]float64(nil), lvl.Effects...)
	}
	if sigma > 0 {
		for i := range values {
			values[i] /= sigma
		}
	}
	return analysis.CatplotSelect(values, analysis.CatplotCap), nil
}
