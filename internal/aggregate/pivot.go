package aggregate

import (
	"fmt"
	"slices"

	"indicadores/internal/core"
)

// Order sorts year-indexed pivots.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Key is a temporal row key. Month carries the snapshot month or the
// year-to-date cut for year-indexed pivots, and is 0 for annual rows.
type Key struct {
	Year  int    `json:"ano"`
	Month int    `json:"mes,omitempty"`
	Label string `json:"label"`
}

// Pivot is a zero-filled 2-D table: temporal keys by group columns.
type Pivot struct {
	Name    string      `json:"name"`
	Index   []Key       `json:"index"`
	Columns []string    `json:"columns"`
	Cells   [][]float64 `json:"cells"`
}

// Empty reports whether the pivot has no rows or no columns.
func (p Pivot) Empty() bool {
	return len(p.Index) == 0 || len(p.Columns) == 0
}

// Named returns a copy carrying a display name.
func (p Pivot) Named(name string) Pivot {
	p.Name = name
	return p
}

// ColumnIndex returns the position of col or -1.
func (p Pivot) ColumnIndex(col string) int {
	return slices.Index(p.Columns, col)
}

// RowIndex returns the position of the row with the given key or -1.
func (p Pivot) RowIndex(year, month int) int {
	for i, k := range p.Index {
		if k.Year == year && k.Month == month {
			return i
		}
	}
	return -1
}

// Value returns the cell at (year, month) x col.
func (p Pivot) Value(year, month int, col string) (float64, bool) {
	r, c := p.RowIndex(year, month), p.ColumnIndex(col)
	if r < 0 || c < 0 {
		return 0, false
	}
	return p.Cells[r][c], true
}

// Column returns a copy of one column aligned to the index.
func (p Pivot) Column(col string) []float64 {
	c := p.ColumnIndex(col)
	if c < 0 {
		return nil
	}
	out := make([]float64, len(p.Index))
	for i := range p.Index {
		out[i] = p.Cells[i][c]
	}
	return out
}

// RowTotals sums each row across all columns.
func (p Pivot) RowTotals() []float64 {
	out := make([]float64, len(p.Cells))
	for i, row := range p.Cells {
		for _, v := range row {
			out[i] += v
		}
	}
	return out
}

// Labels returns the display labels of the index.
func (p Pivot) Labels() []string {
	out := make([]string, len(p.Index))
	for i, k := range p.Index {
		out[i] = k.Label
	}
	return out
}

type cell struct {
	sum   float64
	count int
}

type keyID struct{ year, month int }

// build aggregates obs into a pivot. keyOf maps an observation to its row
// (ok=false drops it); rows lists every row key, already ordered.
// Columns are every group present anywhere in obs.
func build(obs []core.Observation, rows []Key, keyOf func(core.Observation) (keyID, bool), agg core.Agg) Pivot {
	if len(obs) == 0 {
		return Pivot{}
	}
	cols := groups(obs)
	colIdx := make(map[string]int, len(cols))
	for i, c := range cols {
		colIdx[c] = i
	}
	rowIdx := make(map[keyID]int, len(rows))
	for i, k := range rows {
		rowIdx[keyID{k.Year, k.Month}] = i
	}

	acc := make([][]cell, len(rows))
	for i := range acc {
		acc[i] = make([]cell, len(cols))
	}
	for _, o := range obs {
		id, ok := keyOf(o)
		if !ok {
			continue
		}
		r, ok := rowIdx[id]
		if !ok {
			continue
		}
		c := &acc[r][colIdx[o.Group]]
		c.sum += o.Value
		c.count++
	}

	cells := make([][]float64, len(rows))
	for i := range acc {
		cells[i] = make([]float64, len(cols))
		for j, c := range acc[i] {
			cells[i][j] = c.value(agg)
		}
	}
	return Pivot{Index: rows, Columns: cols, Cells: cells}
}

func (c cell) value(agg core.Agg) float64 {
	if c.count == 0 {
		return 0
	}
	if agg == core.AggMean {
		return c.sum / float64(c.count)
	}
	return c.sum
}

func groups(obs []core.Observation) []string {
	seen := make(map[string]struct{})
	for _, o := range obs {
		seen[o.Group] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

func years(obs []core.Observation, keep func(core.Observation) bool) []int {
	seen := make(map[int]struct{})
	for _, o := range obs {
		if keep(o) {
			seen[o.Year] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	slices.Sort(out)
	return out
}

// MonthlySeries pivots monthly data: one row per distinct (year, month),
// chronological.
func MonthlySeries(obs []core.Observation, agg core.Agg) Pivot {
	return PeriodSeries(obs, core.Monthly, agg)
}

// PeriodSeries pivots by distinct (year, period) with labels for the
// given granularity.
func PeriodSeries(obs []core.Observation, g core.Granularity, agg core.Agg) Pivot {
	seen := make(map[keyID]struct{})
	var ids []keyID
	for _, o := range obs {
		id := keyID{o.Year, o.Month}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b keyID) int {
		if a.year != b.year {
			return a.year - b.year
		}
		return a.month - b.month
	})
	rows := make([]Key, len(ids))
	for i, id := range ids {
		rows[i] = Key{Year: id.year, Month: id.month, Label: core.PeriodLabel(g, id.year, id.month)}
	}
	return build(obs, rows, func(o core.Observation) (keyID, bool) {
		return keyID{o.Year, o.Month}, true
	}, agg)
}

// YearSnapshot keeps rows of targetMonth and pivots them by year.
// Only years with data for targetMonth get a row.
func YearSnapshot(obs []core.Observation, targetMonth int, agg core.Agg) Pivot {
	ys := years(obs, func(o core.Observation) bool { return o.Month == targetMonth })
	rows := make([]Key, len(ys))
	for i, y := range ys {
		rows[i] = Key{Year: y, Month: targetMonth, Label: core.PeriodLabel(core.Monthly, y, targetMonth)}
	}
	return build(obs, rows, func(o core.Observation) (keyID, bool) {
		return keyID{o.Year, targetMonth}, o.Month == targetMonth
	}, agg)
}

// YearToDate accumulates months 1..upToMonth per year. Years with no
// data up to upToMonth are left out.
func YearToDate(obs []core.Observation, upToMonth int, agg core.Agg) Pivot {
	ys := years(obs, func(o core.Observation) bool { return o.Month <= upToMonth })
	rows := make([]Key, len(ys))
	for i, y := range ys {
		rows[i] = Key{Year: y, Month: upToMonth, Label: core.YearToDateLabel(y, upToMonth)}
	}
	return build(obs, rows, func(o core.Observation) (keyID, bool) {
		return keyID{o.Year, upToMonth}, o.Month <= upToMonth
	}, agg)
}

// AnnualSeries pivots whole years up to and including upToYear.
func AnnualSeries(obs []core.Observation, upToYear int, order Order, agg core.Agg) Pivot {
	ys := years(obs, func(o core.Observation) bool { return o.Year <= upToYear })
	if order == Descending {
		slices.Reverse(ys)
	}
	rows := make([]Key, len(ys))
	for i, y := range ys {
		rows[i] = Key{Year: y, Label: fmt.Sprint(y)}
	}
	return build(obs, rows, func(o core.Observation) (keyID, bool) {
		return keyID{o.Year, 0}, o.Year <= upToYear
	}, agg)
}

// Transpose swaps index and columns; the new index carries labels only.
// It backs tables shown with categories as rows and periods as columns.
func (p Pivot) Transpose() Pivot {
	out := Pivot{Name: p.Name, Columns: p.Labels()}
	out.Index = make([]Key, len(p.Columns))
	out.Cells = make([][]float64, len(p.Columns))
	for j, c := range p.Columns {
		out.Index[j] = Key{Label: c}
		out.Cells[j] = make([]float64, len(p.Index))
		for i := range p.Index {
			out.Cells[j][i] = p.Cells[i][j]
		}
	}
	return out
}
