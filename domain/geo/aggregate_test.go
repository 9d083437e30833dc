package geo

import (
	"testing"

	"mlid/domain/core"
)

func fourUnitTable(t *testing.T) *Table {
	t.Helper()
	tab, err := NewTable(
		[]string{"u1", "u2", "u3", "u4"},
		map[string][]float64{
			"y": {10, 10, 5, 5},
			"x": {2, 4, 6, 8},
		},
		map[string][]string{
			"district": {"A", "A", "B", "B"},
			"region":   {"N", "N", "S", "S"},
		},
	)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return tab
}

func TestSumUp_SumsCounts(t *testing.T) {
	agg, err := SumUp(fourUnitTable(t), "district")
	if err != nil {
		t.Fatalf("sumup: %v", err)
	}

	if agg.N() != 2 {
		t.Fatalf("expected 2 rows, got %d", agg.N())
	}
	y, _ := agg.Counts("y")
	if y[0] != 20 || y[1] != 10 {
		t.Fatalf("expected y [20 10], got %v", y)
	}
	x, _ := agg.Counts("x")
	if x[0] != 6 || x[1] != 14 {
		t.Fatalf("expected x [6 14], got %v", x)
	}
	region, ok := agg.Keys("region")
	if !ok || region[0] != "N" || region[1] != "S" {
		t.Fatalf("expected carried region [N S], got %v", region)
	}
}

func TestSumUp_Idempotent(t *testing.T) {
	agg, err := SumUp(fourUnitTable(t), "district")
	if err != nil {
		t.Fatalf("sumup: %v", err)
	}
	again, err := SumUp(agg, "district")
	if err != nil {
		t.Fatalf("second sumup: %v", err)
	}

	if again.N() != agg.N() {
		t.Fatalf("re-aggregation changed row count: %d vs %d", again.N(), agg.N())
	}
	y1, _ := agg.Counts("y")
	y2, _ := again.Counts("y")
	for i := range y1 {
		if y1[i] != y2[i] {
			t.Fatalf("re-aggregation changed counts: %v vs %v", y1, y2)
		}
	}
}

func TestSumUp_DropKeys(t *testing.T) {
	agg, err := SumUp(fourUnitTable(t), "district", "region")
	if err != nil {
		t.Fatalf("sumup: %v", err)
	}
	if agg.HasKey("region") {
		t.Fatal("dropped key survived aggregation")
	}
	if !agg.HasKey("district") {
		t.Fatal("group key missing from output")
	}
}

func TestSumUp_RejectsInconsistentCarriedKey(t *testing.T) {
	tab, _ := NewTable(
		[]string{"u1", "u2"},
		map[string][]float64{"y": {1, 1}},
		map[string][]string{
			"district": {"A", "A"},
			"region":   {"N", "S"},
		},
	)

	_, err := SumUp(tab, "district")
	if !core.IsHierarchyError(err) {
		t.Fatalf("expected hierarchy error, got %v", err)
	}
}
