package app

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlid/domain/core"
	"mlid/domain/geo"
	"mlid/internal/analysis"
	"mlid/internal/multilevel"
)

func testTable(t *testing.T) *geo.Table {
	t.Helper()
	tab, err := geo.NewTable(
		[]string{"u01", "u02", "u03", "u04", "u05", "u06", "u07", "u08"},
		map[string][]float64{
			"whiteb": {120, 110, 30, 25, 80, 85, 10, 15},
			"asian":  {10, 15, 95, 100, 20, 25, 110, 105},
		},
		map[string][]string{
			"district": {"d1", "d1", "d2", "d2", "d3", "d3", "d4", "d4"},
			"region":   {"r1", "r1", "r1", "r1", "r2", "r2", "r2", "r2"},
		},
	)
	require.NoError(t, err)
	return tab
}

func TestAnalysisService_FullRun(t *testing.T) {
	svc := NewAnalysisService(multilevel.Options{}, nil)

	res, err := svc.Run(context.Background(), testTable(t), Request{
		Spec: multilevel.Spec{
			YCol:   "whiteb",
			XCol:   "asian",
			Levels: geo.Hierarchy{"district", "region"},
		},
		Simulations: 500,
		Seed:        7,
		Places:      []analysis.Place{{Level: "district", Group: "d1"}},
	})
	require.NoError(t, err)

	assert.False(t, res.RunID.String() == "")
	assert.GreaterOrEqual(t, res.ID, 0.0)
	assert.LessOrEqual(t, res.ID, 1.0)

	// No totals column supplied: the estimated-totals warning must surface.
	foundWarn := false
	for _, w := range res.Warnings {
		if w.Code == core.WarnEstimatedTotals {
			foundWarn = true
		}
	}
	assert.True(t, foundWarn, "expected estimated-totals warning")

	require.NotNil(t, res.Expected)
	assert.Equal(t, 500, res.Expected.Trials)
	assert.Greater(t, res.Expected.Expected, 0.0)
	assert.Less(t, res.Expected.Expected, res.ID, "random mixing should sit below observed segregation")

	require.Len(t, res.Decomposition, 3)
	sum := 0.0
	for _, row := range res.Decomposition {
		sum += row.Pvariance
	}
	assert.InDelta(t, 100, sum, 1e-6)

	assert.NotEmpty(t, res.Impacts)
	require.NotNil(t, res.Effect)
	assert.Equal(t, 2, res.Effect.MemberUnits)

	assert.NotEmpty(t, res.Intervals)
	assert.NotEmpty(t, res.Catplot)
	assert.LessOrEqual(t, len(res.Catplot), analysis.CatplotCap)
}

func TestAnalysisService_SkipSimulation(t *testing.T) {
	svc := NewAnalysisService(multilevel.Options{}, nil)

	res, err := svc.Run(context.Background(), testTable(t), Request{
		Spec: multilevel.Spec{
			YCol:   "whiteb",
			XCol:   "asian",
			Levels: geo.Hierarchy{"district"},
		},
		Simulations: -1,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Expected)

	// Totals were never consumed, so the estimated-totals approximation must
	// not be reported.
	for _, w := range res.Warnings {
		assert.NotEqual(t, core.WarnEstimatedTotals, w.Code)
	}
}

func TestAnalysisService_BaseOnlyFit(t *testing.T) {
	svc := NewAnalysisService(multilevel.Options{}, nil)

	res, err := svc.Run(context.Background(), testTable(t), Request{
		Spec:        multilevel.Spec{YCol: "whiteb", XCol: "asian"},
		Simulations: -1,
	})
	require.NoError(t, err)

	assert.Empty(t, res.Decomposition)
	assert.Empty(t, res.Impacts)
	assert.NotEmpty(t, res.Intervals)
	assert.False(t, math.IsNaN(res.ID))
}

func TestAnalysisService_PropagatesDomainErrors(t *testing.T) {
	svc := NewAnalysisService(multilevel.Options{}, nil)

	_, err := svc.Run(context.Background(), testTable(t), Request{
		Spec: multilevel.Spec{YCol: "whiteb", XCol: "missing"},
	})
	assert.True(t, core.IsInvalidInputError(err), "got %v", err)

	_, err = svc.Run(context.Background(), testTable(t), Request{
		Spec: multilevel.Spec{YCol: "whiteb", XCol: "asian", Levels: geo.Hierarchy{"ward"}},
	})
	assert.True(t, core.IsConfigurationError(err), "got %v", err)
}
