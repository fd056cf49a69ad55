package aggregate

import (
	"slices"

	"indicadores/internal/core"
)

// CategoryOptions configures the category tables of one dimension.
type CategoryOptions struct {
	Name  string
	Agg   core.Agg
	Order []string
	// Period overrides the period resolved from the observations.
	Period *Period
}

// CategoryTables are the three standard views of a category breakdown.
type CategoryTables struct {
	Period     Period `json:"period"`
	Month      Pivot  `json:"month"`
	YearToDate Pivot  `json:"year_to_date"`
	Annual     Pivot  `json:"annual"`
}

// BuildCategoryTables pivots obs with categories as columns: the latest
// month across years, year to date up to that month, and complete years
// newest first. With an explicit order the columns are exactly that order.
func BuildCategoryTables(obs []core.Observation, opts CategoryOptions) CategoryTables {
	period := ResolvePeriod(obs, core.Monthly)
	if opts.Period != nil {
		period = *opts.Period
	}
	if !period.Valid {
		return CategoryTables{}
	}
	out := CategoryTables{
		Period:     period,
		Month:      YearSnapshot(obs, period.LatestMonth, opts.Agg).Named(opts.Name),
		YearToDate: YearToDate(obs, period.LatestMonth, opts.Agg).Named(opts.Name),
		Annual:     AnnualSeries(obs, period.CompleteYear, Descending, opts.Agg).Named(opts.Name),
	}
	if len(opts.Order) > 0 {
		out.Month = Reorder(out.Month, opts.Order)
		out.YearToDate = Reorder(out.YearToDate, opts.Order)
		out.Annual = Reorder(out.Annual, opts.Order)
	}
	return out
}

// Reorder reindexes columns to order: categories outside order are
// dropped, categories missing from p are zero-filled.
func Reorder(p Pivot, order []string) Pivot {
	out := Pivot{Name: p.Name, Index: slices.Clone(p.Index), Columns: slices.Clone(order)}
	src := make([]int, len(order))
	for j, c := range order {
		src[j] = p.ColumnIndex(c)
	}
	out.Cells = make([][]float64, len(p.Index))
	for i := range p.Index {
		out.Cells[i] = make([]float64, len(order))
		for j, s := range src {
			if s >= 0 {
				out.Cells[i][j] = p.Cells[i][s]
			}
		}
	}
	return out
}

// ScopeToFocus keeps only the records of the focus entity.
func ScopeToFocus(t core.Table, entityCol, focus string) core.Table {
	return t.Where(entityCol, focus)
}

// SortColumnsByRow orders columns by their value in row, largest first
// when desc. Ties keep alphabetical order.
func SortColumnsByRow(p Pivot, row int, desc bool) Pivot {
	if row < 0 || row >= len(p.Index) {
		return p
	}
	order := slices.Clone(p.Columns)
	vals := make(map[string]float64, len(order))
	for j, c := range p.Columns {
		vals[c] = p.Cells[row][j]
	}
	slices.SortStableFunc(order, func(a, b string) int {
		va, vb := vals[a], vals[b]
		if desc {
			va, vb = vb, va
		}
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	})
	return Reorder(p, order)
}

// TopN keeps the first n columns.
func TopN(p Pivot, n int) Pivot {
	if n <= 0 || n >= len(p.Columns) {
		return p
	}
	return Reorder(p, p.Columns[:n])
}

// Share rewrites every cell as its percentage of the row total, rounded to
// digits. Rows summing to zero stay zero.
func Share(p Pivot, digits int) Pivot {
	out := Pivot{Index: p.Index, Columns: p.Columns, Name: p.Name, Cells: make([][]float64, len(p.Cells))}
	for i, row := range p.Cells {
		var total float64
		for _, v := range row {
			total += v
		}
		out.Cells[i] = make([]float64, len(row))
		if total == 0 {
			continue
		}
		for j, v := range row {
			out.Cells[i][j] = Round(v/total*100, digits)
		}
	}
	return out
}
