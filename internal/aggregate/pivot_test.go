package aggregate

import (
	"reflect"
	"testing"

	"indicadores/internal/core"
)

func scenario() []core.Observation {
	return []core.Observation{
		{Year: 2023, Month: 1, Group: "X", Value: 10},
		{Year: 2023, Month: 2, Group: "X", Value: 20},
		{Year: 2024, Month: 1, Group: "X", Value: 12},
		{Year: 2024, Month: 2, Group: "X", Value: 24},
	}
}

func TestMonthlySeriesScenario(t *testing.T) {
	p := MonthlySeries(scenario(), core.AggSum)
	if len(p.Index) != 4 || len(p.Columns) != 1 {
		t.Fatalf("expected 4x1, got %dx%d", len(p.Index), len(p.Columns))
	}
	wantLabels := []string{"Jan/23", "Fev/23", "Jan/24", "Fev/24"}
	if !reflect.DeepEqual(p.Labels(), wantLabels) {
		t.Fatalf("labels = %v", p.Labels())
	}
	if got := p.Column("X"); !reflect.DeepEqual(got, []float64{10, 20, 12, 24}) {
		t.Fatalf("values = %v", got)
	}
}

func TestYearSnapshotScenario(t *testing.T) {
	p := YearSnapshot(scenario(), 1, core.AggSum)
	if p.Index[0].Year != 2023 || p.Index[1].Year != 2024 {
		t.Fatalf("index = %+v", p.Index)
	}
	if got := p.Column("X"); !reflect.DeepEqual(got, []float64{10, 12}) {
		t.Fatalf("values = %v", got)
	}
	v := LagVariations(p, DefaultRoundDigits)
	if v.Cells[0][0].Valid {
		t.Fatalf("first year must have no variation")
	}
	if !v.Cells[1][0].Valid || v.Cells[1][0].Value != 20.0 {
		t.Fatalf("variation = %+v", v.Cells[1][0])
	}
}

func TestYearToDateAlignment(t *testing.T) {
	obs := []core.Observation{
		{Year: 2023, Month: 1, Group: "X", Value: 10},
		{Year: 2023, Month: 2, Group: "X", Value: 20},
		{Year: 2023, Month: 3, Group: "X", Value: 30},
		{Year: 2023, Month: 4, Group: "X", Value: 99},
		{Year: 2024, Month: 1, Group: "X", Value: 15},
		{Year: 2024, Month: 2, Group: "X", Value: 25},
		{Year: 2024, Month: 3, Group: "X", Value: 35},
	}
	p := YearToDate(obs, 3, core.AggSum)
	if got := p.Column("X"); !reflect.DeepEqual(got, []float64{60, 75}) {
		t.Fatalf("ytd = %v", got)
	}
	if p.Index[1].Label != "Jan-Mar/24" {
		t.Fatalf("label = %q", p.Index[1].Label)
	}
	y, ok := YoYAt(p, 2024, 3, "X", DefaultRoundDigits)
	if !ok || !y.Variation.Valid || y.Variation.Value != 25.0 {
		t.Fatalf("yoy = %+v", y)
	}
}

func TestZeroFillCompleteness(t *testing.T) {
	obs := []core.Observation{
		{Year: 2023, Month: 1, Group: "A", Value: 1},
		{Year: 2023, Month: 2, Group: "B", Value: 2},
		{Year: 2024, Month: 1, Group: "C", Value: 3},
	}
	pivots := map[string]Pivot{
		"monthly":  MonthlySeries(obs, core.AggSum),
		"snapshot": YearSnapshot(obs, 2, core.AggSum),
		"ytd":      YearToDate(obs, 1, core.AggSum),
		"annual":   AnnualSeries(obs, 2024, Ascending, core.AggSum),
	}
	for name, p := range pivots {
		if !reflect.DeepEqual(p.Columns, []string{"A", "B", "C"}) {
			t.Fatalf("%s: columns = %v", name, p.Columns)
		}
		for i, row := range p.Cells {
			if len(row) != len(p.Columns) {
				t.Fatalf("%s: row %d has %d cells", name, i, len(row))
			}
		}
	}
	snap := pivots["snapshot"]
	if len(snap.Index) != 1 || snap.Index[0].Year != 2023 {
		t.Fatalf("snapshot rows = %+v", snap.Index)
	}
	if v, _ := snap.Value(2023, 2, "C"); v != 0 {
		t.Fatalf("expected zero fill, got %v", v)
	}
}

func TestSnapshotSkipsYearsWithoutTargetMonth(t *testing.T) {
	var obs []core.Observation
	for m := 1; m <= 12; m++ {
		obs = append(obs, core.Observation{Year: 2023, Month: m, Group: "X", Value: 10})
	}
	for m := 1; m <= 3; m++ {
		obs = append(obs, core.Observation{Year: 2024, Month: m, Group: "X", Value: 10})
	}
	tests := []struct {
		name  string
		p     Pivot
		years []int
	}{
		{"snapshot past latest month", YearSnapshot(obs, 5, core.AggSum), []int{2023}},
		{"snapshot inside latest year", YearSnapshot(obs, 3, core.AggSum), []int{2023, 2024}},
		{"ytd past latest month", YearToDate(obs, 5, core.AggSum), []int{2023, 2024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []int
			for _, k := range tt.p.Index {
				got = append(got, k.Year)
			}
			if !reflect.DeepEqual(got, tt.years) {
				t.Fatalf("years = %v, want %v", got, tt.years)
			}
			v := LagVariations(tt.p, DefaultRoundDigits)
			for i := range v.Cells {
				if c := v.Cells[i][0]; c.Valid && c.Value == -100 {
					t.Fatalf("row %d variation = %+v", i, c)
				}
			}
		})
	}
}

func TestYearToDateSkipsYearsStartingLater(t *testing.T) {
	var obs []core.Observation
	for m := 7; m <= 12; m++ {
		obs = append(obs, core.Observation{Year: 2023, Month: m, Group: "X", Value: 10})
	}
	for m := 1; m <= 2; m++ {
		obs = append(obs, core.Observation{Year: 2024, Month: m, Group: "X", Value: 10})
	}
	p := YearToDate(obs, 2, core.AggSum)
	if len(p.Index) != 1 || p.Index[0].Year != 2024 {
		t.Fatalf("index = %+v", p.Index)
	}
	if got := p.Column("X"); !reflect.DeepEqual(got, []float64{20}) {
		t.Fatalf("ytd = %v", got)
	}
}

func TestPivotIdempotentAndPure(t *testing.T) {
	obs := scenario()
	before := append([]core.Observation(nil), obs...)
	a := MonthlySeries(obs, core.AggSum)
	b := MonthlySeries(obs, core.AggSum)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("monthly series not idempotent")
	}
	if !reflect.DeepEqual(YearToDate(obs, 2, core.AggSum), YearToDate(obs, 2, core.AggSum)) {
		t.Fatalf("ytd not idempotent")
	}
	if !reflect.DeepEqual(obs, before) {
		t.Fatalf("input mutated")
	}
}

func TestAggregationPolicies(t *testing.T) {
	obs := []core.Observation{
		{Year: 2024, Month: 1, Group: "X", Value: 2},
		{Year: 2024, Month: 1, Group: "X", Value: 4},
	}
	if v := MonthlySeries(obs, core.AggSum).Cells[0][0]; v != 6 {
		t.Fatalf("sum = %v", v)
	}
	if v := MonthlySeries(obs, core.AggMean).Cells[0][0]; v != 3 {
		t.Fatalf("mean = %v", v)
	}
}

func TestAnnualSeriesOrder(t *testing.T) {
	obs := append(monthsOf(2022, 12, "X", 1), monthsOf(2023, 12, "X", 2)...)
	obs = append(obs, monthsOf(2024, 3, "X", 5)...)

	asc := AnnualSeries(obs, 2023, Ascending, core.AggSum)
	if !reflect.DeepEqual(asc.Labels(), []string{"2022", "2023"}) {
		t.Fatalf("asc labels = %v", asc.Labels())
	}
	if !reflect.DeepEqual(asc.Column("X"), []float64{12, 24}) {
		t.Fatalf("asc values = %v", asc.Column("X"))
	}
	desc := AnnualSeries(obs, 2023, Descending, core.AggSum)
	if desc.Index[0].Year != 2023 {
		t.Fatalf("desc index = %+v", desc.Index)
	}
}

func TestEmptyInput(t *testing.T) {
	if !MonthlySeries(nil, core.AggSum).Empty() {
		t.Fatalf("expected empty pivot")
	}
	if !YearSnapshot(nil, 1, core.AggSum).Empty() {
		t.Fatalf("expected empty snapshot")
	}
	if tbl := BuildCategoryTables(nil, CategoryOptions{}); tbl.Period.Valid {
		t.Fatalf("expected invalid period")
	}
	if rows := MonthlyYoY(nil, 2); len(rows) != 0 {
		t.Fatalf("expected no rows")
	}
}

func TestTranspose(t *testing.T) {
	p := MonthlySeries(scenario(), core.AggSum).Transpose()
	if len(p.Index) != 1 || p.Index[0].Label != "X" {
		t.Fatalf("index = %+v", p.Index)
	}
	if !reflect.DeepEqual(p.Columns, []string{"Jan/23", "Fev/23", "Jan/24", "Fev/24"}) {
		t.Fatalf("columns = %v", p.Columns)
	}
}
