package analysis

import (
	"math"
	"reflect"
	"testing"
)

func rampValues(n int) []float64 {
	// A smooth ramp with one sharp break in the middle.
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i) * 0.01
		if i >= n/2 {
			values[i] += 5
		}
	}
	return values
}

func TestCatplotSelect_CapAndTails(t *testing.T) {
	values := rampValues(200)

	points := CatplotSelect(values, 0)
	if len(points) != CatplotCap {
		t.Fatalf("expected %d points, got %d", CatplotCap, len(points))
	}

	haveRank := make(map[int]bool, len(points))
	for _, p := range points {
		haveRank[p.Rank] = true
	}
	for r := 0; r < 10; r++ {
		if !haveRank[r] {
			t.Fatalf("bottom rank %d missing", r)
		}
	}
	for r := 190; r < 200; r++ {
		if !haveRank[r] {
			t.Fatalf("top rank %d missing", r)
		}
	}
}

func TestCatplotSelect_KeepsSharpBreak(t *testing.T) {
	// Two flat plateaus: the only non-zero rank-to-rank gap is the step
	// between ranks 99 and 100. The greedy rule must take the point just
	// above the step before anything else.
	values := make([]float64, 200)
	for i := 100; i < 200; i++ {
		values[i] = 5
	}

	points := CatplotSelect(values, 0)
	found := false
	for _, p := range points {
		if p.Rank == 100 {
			found = true
		}
	}
	if !found {
		t.Fatal("sharpest breakpoint not selected")
	}
}

func TestCatplotSelect_TinyCapNeverExceeded(t *testing.T) {
	values := rampValues(200)

	points := CatplotSelect(values, 6)
	if len(points) != 6 {
		t.Fatalf("cap 6 produced %d points", len(points))
	}
	if points[0].Rank != 0 || points[len(points)-1].Rank != 199 {
		t.Fatalf("extremes missing under tiny cap: %+v", points)
	}

	points = CatplotSelect(values, 1)
	if len(points) != 1 {
		t.Fatalf("cap 1 produced %d points", len(points))
	}
	if points[0].Rank != 0 {
		t.Fatalf("cap 1 should keep the lowest rank, got %d", points[0].Rank)
	}
}

func TestCatplotSelect_SmallInputsReturnedWhole(t *testing.T) {
	values := rampValues(30)

	points := CatplotSelect(values, 0)
	if len(points) != 30 {
		t.Fatalf("expected all 30 points, got %d", len(points))
	}
	for r, p := range points {
		if p.Rank != r {
			t.Fatalf("rank %d out of order", r)
		}
	}
}

func TestCatplotSelect_Deterministic(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		// Heavy ties: only 6 distinct values.
		values[i] = math.Floor(float64(i) / 20)
	}

	a := CatplotSelect(values, 0)
	b := CatplotSelect(values, 0)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("selection is not deterministic")
	}
	if len(a) != CatplotCap {
		t.Fatalf("expected %d points, got %d", CatplotCap, len(a))
	}
}

func TestCatplotSelect_RanksAscending(t *testing.T) {
	values := []float64{3, 1, 2, 0, 4}

	points := CatplotSelect(values, 0)
	for i := 1; i < len(points); i++ {
		if points[i].Rank <= points[i-1].Rank {
			t.Fatal("points not in rank order")
		}
	}
	if points[0].Index != 3 || points[len(points)-1].Index != 4 {
		t.Fatalf("rank/index mapping wrong: %+v", points)
	}
}
